package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/anime-shed/receipt-inspector-go/internal/config"
	apperrors "github.com/anime-shed/receipt-inspector-go/internal/errors"
	"github.com/anime-shed/receipt-inspector-go/internal/logger"
	"github.com/anime-shed/receipt-inspector-go/internal/monitor"
	"github.com/anime-shed/receipt-inspector-go/internal/observer"
	"github.com/anime-shed/receipt-inspector-go/internal/service"
	"github.com/anime-shed/receipt-inspector-go/pkg/models"
	"github.com/anime-shed/receipt-inspector-go/pkg/validation"
)

// HandlerDeps are the collaborators served over HTTP. EventCounts and Gatherer may be nil.
type HandlerDeps struct {
	Service     service.ReceiptProcessingService
	Validator   *validation.FieldValidator
	Stats       *monitor.GlobalStats
	EventCounts *observer.MetricsObserver
	Gatherer    prometheus.Gatherer
}

// StatsResponse is returned by the stats endpoints
type StatsResponse struct {
	Stats  monitor.StatsSnapshot        `json:"stats"`
	Events map[observer.EventType]int64 `json:"events,omitempty"`
}

type handler struct {
	deps HandlerDeps
	cfg  *config.Config
}

func NewHandler(deps HandlerDeps, cfg *config.Config) http.Handler {
	if deps.Validator == nil {
		deps.Validator = validation.NewFieldValidator()
	}
	if deps.Stats == nil {
		deps.Stats = monitor.NewGlobalStats()
	}
	h := &handler{deps: deps, cfg: cfg}

	r := gin.Default()

	// Add middleware
	r.Use(
		requestSizeLimiter(cfg.MaxRequestBodySize),
		requestLogger(),
		errorHandler(),
	)

	// Configure routes
	r.GET("/health", healthCheck)

	v1 := r.Group("/v1")
	v1.POST("/receipts", h.processUpload)
	v1.POST("/receipts/url", h.processURL)
	v1.POST("/receipts/batch", h.processBatch)
	v1.POST("/validate", h.validateField)
	v1.GET("/stats", h.stats)
	v1.POST("/stats/reset", h.resetStats)

	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	return r
}

func (h *handler) processUpload(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.cfg.RequestTimeout)
	defer cancel()

	file, err := c.FormFile("file")
	if err != nil {
		respondError(c, http.StatusBadRequest, "missing receipt image", err)
		return
	}

	req, err := readUpload(file)
	if err != nil {
		respondError(c, apperrors.GetStatusCode(err), "invalid receipt image", err)
		return
	}
	req.DocumentType = c.PostForm("document_type")
	req.ExpectedText = c.PostForm("expected_text")
	req.ForceOCR = formBool(c, "force_ocr")

	result, err := h.deps.Service.ProcessReceipt(ctx, req)
	if err != nil {
		respondError(c, apperrors.GetStatusCode(err), "receipt processing failed", err)
		return
	}

	logCompleted(c, result)
	c.JSON(http.StatusOK, result)
}

func (h *handler) processURL(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.cfg.RequestTimeout)
	defer cancel()

	var req models.URLProcessingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request format", err)
		return
	}

	// Validate image URL
	if err := h.deps.Service.ValidateImageURL(req.URL); err != nil {
		respondError(c, http.StatusBadRequest, "invalid image URL", err)
		return
	}

	logger.WithFields(logrus.Fields{
		"url":           req.URL,
		"document_type": req.DocumentType,
	}).Debug("Fetching receipt image")

	result, err := h.deps.Service.ProcessFromURL(ctx, req)
	if err != nil {
		respondError(c, apperrors.GetStatusCode(err), "failed to process receipt", err)
		return
	}

	logCompleted(c, result)
	c.JSON(http.StatusOK, result)
}

func (h *handler) processBatch(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.cfg.RequestTimeout)
	defer cancel()

	form, err := c.MultipartForm()
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid multipart form", err)
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		files = form.File["files[]"]
	}
	switch {
	case len(files) == 0:
		respondError(c, http.StatusBadRequest, "invalid batch", errors.New("no files uploaded"))
		return
	case len(files) > h.cfg.MaxBatchSize:
		respondError(c, http.StatusBadRequest, "invalid batch",
			fmt.Errorf("%d files exceeds the limit of %d", len(files), h.cfg.MaxBatchSize))
		return
	}

	docType := c.PostForm("document_type")
	forceOCR := formBool(c, "force_ocr")

	reqs := make([]service.ProcessRequest, 0, len(files))
	for _, file := range files {
		req, err := readUpload(file)
		if err != nil {
			// unreadable parts still get a slot so results line up with uploads
			req = service.ProcessRequest{Source: file.Filename}
		}
		req.DocumentType = docType
		req.ForceOCR = forceOCR
		reqs = append(reqs, req)
	}

	resp := h.deps.Service.ProcessBatch(ctx, reqs)
	logger.WithFields(logrus.Fields{
		"files":     len(files),
		"succeeded": resp.Succeeded,
		"failed":    resp.Failed,
	}).Info("Batch processing completed")

	c.JSON(http.StatusOK, resp)
}

func (h *handler) validateField(c *gin.Context) {
	var req models.ValidateFieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request format", err)
		return
	}

	fieldType, ok := validation.ParseFieldType(req.FieldType)
	if !ok {
		respondError(c, http.StatusBadRequest, "invalid field type",
			apperrors.NewValidationError(fmt.Sprintf("unknown field type %q", req.FieldType), nil))
		return
	}

	c.JSON(http.StatusOK, h.deps.Validator.ValidateField(fieldType, req.Value, req.Confidence))
}

func (h *handler) stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.statsResponse())
}

func (h *handler) resetStats(c *gin.Context) {
	h.deps.Stats.Reset()
	logger.WithField("ip", c.ClientIP()).Warn("Global processing stats reset")
	c.JSON(http.StatusOK, h.statsResponse())
}

func (h *handler) statsResponse() StatsResponse {
	resp := StatsResponse{Stats: h.deps.Stats.Snapshot()}
	if h.deps.EventCounts != nil {
		resp.Events = h.deps.EventCounts.GetMetrics()
	}
	return resp
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "available",
		"version": "1.0.0",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// readUpload loads one multipart file. The declared content type is trusted unless
// it is missing or generic, in which case the bytes are sniffed.
func readUpload(file *multipart.FileHeader) (service.ProcessRequest, error) {
	f, err := file.Open()
	if err != nil {
		return service.ProcessRequest{}, apperrors.NewValidationError("cannot open upload", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return service.ProcessRequest{}, apperrors.NewValidationError("upload too large", err)
		}
		return service.ProcessRequest{}, apperrors.NewValidationError("cannot read upload", err)
	}

	mimeType := file.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = mimetype.Detect(data).String()
	}

	return service.ProcessRequest{
		Data:     data,
		MimeType: mimeType,
		Source:   file.Filename,
	}, nil
}

func formBool(c *gin.Context, key string) bool {
	v, err := strconv.ParseBool(c.PostForm(key))
	return err == nil && v
}

func logCompleted(c *gin.Context, result *models.ProcessingResult) {
	logger.WithFields(logrus.Fields{
		"session_id":         result.Session.SessionID,
		"source":             result.Source,
		"document_type":      result.DocumentType,
		"quality_score":      result.QualityResult.Score,
		"overall_quality":    result.Session.OverallQuality,
		"processing_time_ms": result.Session.Metrics.ProcessingTime,
		"ip":                 c.ClientIP(),
	}).Info("Receipt processing completed successfully")
}

// Middleware and helper functions
func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.WithFields(logrus.Fields{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status_code": c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
			"user_agent":  c.Request.UserAgent(),
			"ip":          c.ClientIP(),
		}).Debug("Request handled")
	}
}

func errorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			err := c.Errors.Last()
			respondError(c, determineStatusCode(err.Err), "request processing failed", err)
		}
	}
}

func determineStatusCode(err error) int {
	// Check if it's a custom app error first
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	// Fallback to context-based errors
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, code int, message string, err error) {
	// Log the error with context
	logger.WithError(err).WithFields(logrus.Fields{
		"status_code": code,
		"message":     message,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	}).Error("Request failed")

	c.AbortWithStatusJSON(code, models.ErrorResponse{
		Error:   http.StatusText(code),
		Message: fmt.Sprintf("%s: %v", message, err),
	})
}
