package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anime-shed/receipt-inspector-go/internal/config"
	apperrors "github.com/anime-shed/receipt-inspector-go/internal/errors"
	"github.com/anime-shed/receipt-inspector-go/internal/monitor"
	"github.com/anime-shed/receipt-inspector-go/internal/observer"
	"github.com/anime-shed/receipt-inspector-go/internal/service"
	"github.com/anime-shed/receipt-inspector-go/pkg/models"
	"github.com/anime-shed/receipt-inspector-go/pkg/validation"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeService struct {
	mu       sync.Mutex
	requests []service.ProcessRequest
	urlReqs  []models.URLProcessingRequest
	urlErr   error
	fetchErr error
}

func (f *fakeService) ProcessReceipt(_ context.Context, req service.ProcessRequest) (*models.ProcessingResult, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if len(req.Data) == 0 {
		return nil, apperrors.NewValidationError("image is empty", nil)
	}
	return &models.ProcessingResult{Source: req.Source, DocumentType: "receipt"}, nil
}

func (f *fakeService) ProcessFromURL(ctx context.Context, req models.URLProcessingRequest) (*models.ProcessingResult, error) {
	f.urlReqs = append(f.urlReqs, req)
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.ProcessReceipt(ctx, service.ProcessRequest{Data: []byte("x"), Source: req.URL})
}

func (f *fakeService) ProcessBatch(ctx context.Context, reqs []service.ProcessRequest) models.BatchResponse {
	resp := models.BatchResponse{}
	for _, req := range reqs {
		item := models.BatchItemResult{Filename: req.Source}
		result, err := f.ProcessReceipt(ctx, req)
		if err != nil {
			item.Error = err.Error()
			resp.Failed++
		} else {
			item.Result = result
			resp.Succeeded++
		}
		resp.Results = append(resp.Results, item)
	}
	return resp
}

func (f *fakeService) ValidateImageURL(string) error { return f.urlErr }

func testConfig() *config.Config {
	return &config.Config{
		RequestTimeout:     5 * time.Second,
		MaxRequestBodySize: 1 << 20,
		MaxBatchSize:       3,
	}
}

type upload struct {
	field, name, contentType string
	data                     []byte
}

func multipartBody(t *testing.T, uploads []upload, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for _, u := range uploads {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+u.field+`"; filename="`+u.name+`"`)
		if u.contentType != "" {
			h.Set("Content-Type", u.contentType)
		}
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(u.data)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestHealthCheck(t *testing.T) {
	h := NewHandler(HandlerDeps{Service: &fakeService{}}, testConfig())

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"available"`)
}

func TestProcessUpload(t *testing.T) {
	svc := &fakeService{}
	h := NewHandler(HandlerDeps{Service: svc}, testConfig())

	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	body, contentType := multipartBody(t,
		[]upload{{field: "file", name: "r.png", data: png}},
		map[string]string{"document_type": "invoice", "force_ocr": "true", "expected_text": "TOTAL 8.10"},
	)
	req := httptest.NewRequest(http.MethodPost, "/v1/receipts", body)
	req.Header.Set("Content-Type", contentType)

	rec := serve(h, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.Len(t, svc.requests, 1)
	got := svc.requests[0]
	assert.Equal(t, "r.png", got.Source)
	assert.Equal(t, "image/png", got.MimeType, "generic part type is sniffed")
	assert.Equal(t, "invoice", got.DocumentType)
	assert.Equal(t, "TOTAL 8.10", got.ExpectedText)
	assert.True(t, got.ForceOCR)

	var result models.ProcessingResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "r.png", result.Source)
}

func TestProcessUpload_MissingFile(t *testing.T) {
	h := NewHandler(HandlerDeps{Service: &fakeService{}}, testConfig())

	body, contentType := multipartBody(t, nil, map[string]string{"document_type": "receipt"})
	req := httptest.NewRequest(http.MethodPost, "/v1/receipts", body)
	req.Header.Set("Content-Type", contentType)

	rec := serve(h, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProcessUpload_EmptyFile(t *testing.T) {
	h := NewHandler(HandlerDeps{Service: &fakeService{}}, testConfig())

	body, contentType := multipartBody(t, []upload{{field: "file", name: "r.jpg", contentType: "image/jpeg"}}, nil)
	req := httptest.NewRequest(http.MethodPost, "/v1/receipts", body)
	req.Header.Set("Content-Type", contentType)

	rec := serve(h, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Message, "image is empty")
}

func TestProcessURL(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		svc    *fakeService
		status int
	}{
		{"ok", `{"url":"https://example.com/r.jpg","document_type":"receipt"}`, &fakeService{}, http.StatusOK},
		{"missing url", `{"document_type":"receipt"}`, &fakeService{}, http.StatusBadRequest},
		{"malformed json", `{"url":`, &fakeService{}, http.StatusBadRequest},
		{"rejected url", `{"url":"ftp://example.com/r.jpg"}`, &fakeService{urlErr: errors.New("URL scheme not allowed")}, http.StatusBadRequest},
		{"fetch timeout", `{"url":"https://example.com/r.jpg"}`, &fakeService{fetchErr: apperrors.NewTimeoutError("Image fetch timeout", context.DeadlineExceeded)}, http.StatusGatewayTimeout},
		{"fetch failed", `{"url":"https://example.com/r.jpg"}`, &fakeService{fetchErr: apperrors.NewNetworkError("Failed to fetch image", nil)}, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(HandlerDeps{Service: tt.svc}, testConfig())
			rec := serve(h, jsonRequest(http.MethodPost, "/v1/receipts/url", tt.body))
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestProcessBatch(t *testing.T) {
	svc := &fakeService{}
	h := NewHandler(HandlerDeps{Service: svc}, testConfig())

	body, contentType := multipartBody(t, []upload{
		{field: "files", name: "a.jpg", contentType: "image/jpeg", data: []byte("a")},
		{field: "files", name: "b.jpg", contentType: "image/jpeg"},
		{field: "files", name: "c.jpg", contentType: "image/jpeg", data: []byte("c")},
	}, map[string]string{"document_type": "fuel"})
	req := httptest.NewRequest(http.MethodPost, "/v1/receipts/batch", body)
	req.Header.Set("Content-Type", contentType)

	rec := serve(h, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp models.BatchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Succeeded)
	assert.Equal(t, 1, resp.Failed)
	require.Len(t, resp.Results, 3)
	assert.Equal(t, "b.jpg", resp.Results[1].Filename)
	assert.NotEmpty(t, resp.Results[1].Error)

	for _, r := range svc.requests {
		assert.Equal(t, "fuel", r.DocumentType)
	}
}

func TestProcessBatch_Limits(t *testing.T) {
	h := NewHandler(HandlerDeps{Service: &fakeService{}}, testConfig())

	uploads := make([]upload, 4)
	for i := range uploads {
		uploads[i] = upload{field: "files", name: "r.jpg", contentType: "image/jpeg", data: []byte("x")}
	}
	body, contentType := multipartBody(t, uploads, nil)
	req := httptest.NewRequest(http.MethodPost, "/v1/receipts/batch", body)
	req.Header.Set("Content-Type", contentType)
	assert.Equal(t, http.StatusBadRequest, serve(h, req).Code)

	body, contentType = multipartBody(t, nil, map[string]string{"document_type": "receipt"})
	req = httptest.NewRequest(http.MethodPost, "/v1/receipts/batch", body)
	req.Header.Set("Content-Type", contentType)
	assert.Equal(t, http.StatusBadRequest, serve(h, req).Code)
}

func TestValidateField(t *testing.T) {
	h := NewHandler(HandlerDeps{Service: &fakeService{}}, testConfig())

	rec := serve(h, jsonRequest(http.MethodPost, "/v1/validate", `{"field_type":"amount","value":"$12.50","confidence":0.95}`))
	require.Equal(t, http.StatusOK, rec.Code)
	var res validation.ValidationResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.True(t, res.IsValid)
	assert.Equal(t, validation.SeverityInfo, res.Severity)

	rec = serve(h, jsonRequest(http.MethodPost, "/v1/validate", `{"field_type":"vendor","value":""}`))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.False(t, res.IsValid)

	rec = serve(h, jsonRequest(http.MethodPost, "/v1/validate", `{"field_type":"colour","value":"red"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(h, jsonRequest(http.MethodPost, "/v1/validate", `{"field_type":"amount","value":"1","confidence":1.5}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatsEndpoints(t *testing.T) {
	stats := monitor.NewGlobalStats()
	m := monitor.NewPerformanceMonitor(0.9, "receipt", monitor.WithoutMemorySnapshots())
	m.StartStep(monitor.StepVisionAPI)
	m.EndStep(false, monitor.WithError("timeout"))
	stats.Update(m.FinishSession(0.5))

	events := observer.NewMetricsObserver()
	events.OnEvent(context.Background(), observer.PipelineEvent{EventType: observer.ProcessingCompleted})

	h := NewHandler(HandlerDeps{Service: &fakeService{}, Stats: stats, EventCounts: events}, testConfig())

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/v1/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp StatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.Stats.TotalSessions)
	assert.Equal(t, int64(1), resp.Stats.FailedSessions)
	assert.Equal(t, 1, resp.Stats.ErrorCounts.VisionAPIErrors)
	assert.Equal(t, int64(1), resp.Events[observer.ProcessingCompleted])

	rec = serve(h, httptest.NewRequest(http.MethodPost, "/v1/stats/reset", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Zero(t, resp.Stats.TotalSessions)
	assert.Zero(t, stats.Snapshot().TotalSessions)
}

func TestMetricsEndpoint(t *testing.T) {
	stats := monitor.NewGlobalStats()
	reg := prometheus.NewRegistry()
	require.NoError(t, stats.Register(reg))
	stats.Update(monitor.NewPerformanceMonitor(1, "receipt", monitor.WithoutMemorySnapshots()).FinishSession(0.9))

	h := NewHandler(HandlerDeps{Service: &fakeService{}, Stats: stats, Gatherer: reg}, testConfig())

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `receipt_inspector_sessions_total{document_type="receipt",success="true"} 1`)

	h = NewHandler(HandlerDeps{Service: &fakeService{}}, testConfig())
	assert.Equal(t, http.StatusNotFound, serve(h, httptest.NewRequest(http.MethodGet, "/metrics", nil)).Code)
}
