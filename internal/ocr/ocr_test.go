package ocr

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"net/http"
	"testing"

	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/Azure/azure-sdk-for-go/services/cognitiveservices/v3.0/computervision"
	"github.com/Azure/go-autorest/autorest"
	"github.com/otiai10/gosseract/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/anime-shed/receipt-inspector-go/internal/errors"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorClass
	}{
		{"nil", nil, ""},
		{"deadline", fmt.Errorf("recognize: %w", context.DeadlineExceeded), ClassTimeout},
		{"app timeout", apperrors.NewTimeoutError("slow", nil), ClassTimeout},
		{"no text", ErrNoText, ClassNoText},
		{"unauthorized", apperrors.NewUnauthorizedError("bad key", nil), ClassAuth},
		{"network", apperrors.NewNetworkError("down", nil), ClassNetwork},
		{"grpc unauthenticated", errors.New("rpc error: code = Unauthenticated desc = bad token"), ClassAuth},
		{"grpc unavailable", errors.New("rpc error: code = Unavailable desc = connection reset"), ClassNetwork},
		{"grpc deadline", errors.New("rpc error: code = DeadlineExceeded desc = ..."), ClassTimeout},
		{"other", errors.New("boom"), ClassUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyError(tt.err); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestMeasureAccuracy(t *testing.T) {
	tests := []struct {
		name       string
		expected   string
		actual     string
		wantRate   float64
		wantErrors int
		wantCER    float64
	}{
		{"one misread word of two", "TOTAL 12.50", "total 12.5O", 0.5, 1, 1.0 / 11.0},
		{"case and spacing ignored", "coffee 3.00", "Coffee   3.00", 0, 0, 0},
		{"one misread word of four", "milk 2.49 bread 3.10", "milk 2.49 bread 3.1O", 0.25, 1, 1.0 / 20.0},
		{"two dropped words of four", "milk 2.49 bread 3.10", "milk 2.49", 0.5, 2, 11.0 / 20.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acc, ok := MeasureAccuracy(tt.expected, tt.actual)
			require.True(t, ok)
			assert.InDelta(t, tt.wantRate, acc.WordErrorRate, 1e-9)
			assert.InDelta(t, 1-tt.wantRate, acc.WordAccuracy, 1e-9)
			assert.Equal(t, tt.wantErrors, acc.WordErrors)
			assert.InDelta(t, tt.wantCER, acc.CharacterErrorRate, 1e-9)
		})
	}

	_, ok := MeasureAccuracy("   ", "anything")
	assert.False(t, ok)
}

func TestNormalize(t *testing.T) {
	in := "ACME  MART\r\n\tMain St \r\n-----\r\n\r\n\r\n\r\nTOTAL   9.99  "
	want := "ACME MART\n Main St\n\nTOTAL 9.99"
	if got := Normalize(in); got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
	if Normalize("") != "" {
		t.Error("Expected empty string to stay empty")
	}
}

func TestRecognitionHelpers(t *testing.T) {
	rec := &Recognition{Tokens: tokensFromText("a b c", 0.6)}
	assert.False(t, rec.HasGeometry())
	assert.InDelta(t, 0.6, rec.MeanConfidence(), 1e-9)
	assert.Zero(t, (&Recognition{}).MeanConfidence())

	assert.Equal(t, 0.0, clampConfidence(math.NaN()))
	assert.Equal(t, 1.0, clampConfidence(3))
	assert.Equal(t, 0.0, clampConfidence(-1))
}

func TestTokensFromBoxes(t *testing.T) {
	boxes := []gosseract.BoundingBox{
		{Box: image.Rect(10, 20, 60, 40), Word: "TOTAL", Confidence: 91},
		{Box: image.Rect(70, 20, 110, 40), Word: "  ", Confidence: 10},
	}

	tokens := tokensFromBoxes(boxes)

	require.Len(t, tokens, 1)
	assert.Equal(t, "TOTAL", tokens[0].Text)
	assert.True(t, tokens[0].HasBox)
	assert.Equal(t, BoundingBox{X1: 10, Y1: 20, X2: 60, Y2: 40}, tokens[0].Box)
	assert.InDelta(t, 0.91, tokens[0].Confidence, 1e-9)
}

func docToken(start, end int64, conf float32, x1, y1, x2, y2 float32) *documentaipb.Document_Page_Token {
	return &documentaipb.Document_Page_Token{
		Layout: &documentaipb.Document_Page_Layout{
			TextAnchor: &documentaipb.Document_TextAnchor{
				TextSegments: []*documentaipb.Document_TextAnchor_TextSegment{{StartIndex: start, EndIndex: end}},
			},
			Confidence: conf,
			BoundingPoly: &documentaipb.BoundingPoly{
				NormalizedVertices: []*documentaipb.NormalizedVertex{
					{X: x1, Y: y1}, {X: x2, Y: y1}, {X: x2, Y: y2}, {X: x1, Y: y2},
				},
			},
		},
	}
}

func TestRecognitionFromDocument(t *testing.T) {
	doc := &documentaipb.Document{
		Text: "TOTAL 12.50\n",
		Pages: []*documentaipb.Document_Page{{
			Dimension: &documentaipb.Document_Page_Dimension{Width: 1000, Height: 2000},
			Tokens: []*documentaipb.Document_Page_Token{
				docToken(0, 6, 0.95, 0.1, 0.5, 0.3, 0.52),
				docToken(6, 11, 0.9, 0.6, 0.5, 0.8, 0.52),
			},
		}},
	}

	rec := recognitionFromDocument(doc)

	assert.Equal(t, "TOTAL 12.50", rec.Text)
	assert.Equal(t, 1000.0, rec.PageWidth)
	require.Len(t, rec.Tokens, 2)
	assert.Equal(t, "TOTAL", rec.Tokens[0].Text)
	assert.Equal(t, "12.50", rec.Tokens[1].Text)
	assert.InDelta(t, 100, rec.Tokens[0].Box.X1, 0.01)
	assert.InDelta(t, 1000, rec.Tokens[0].Box.Y1, 0.01)
	assert.InDelta(t, 800, rec.Tokens[1].Box.X2, 0.01)
	assert.InDelta(t, 0.95, rec.Tokens[0].Confidence, 1e-6)
}

func TestRecognitionFromDocument_NoPages(t *testing.T) {
	rec := recognitionFromDocument(&documentaipb.Document{Text: "hello world"})
	assert.Len(t, rec.Tokens, 2)
	assert.False(t, rec.HasGeometry())
	assert.Empty(t, recognitionFromDocument(nil).Text)
}

func strPtr(s string) *string { return &s }

func TestRecognitionFromOcrResult(t *testing.T) {
	words := []computervision.OcrWord{
		{BoundingBox: strPtr("10,20,50,15"), Text: strPtr("TOTAL")},
		{BoundingBox: strPtr("bogus"), Text: strPtr("9.99")},
	}
	lines := []computervision.OcrLine{{Words: &words}}
	regions := []computervision.OcrRegion{{Lines: &lines}}

	rec := recognitionFromOcrResult(computervision.OcrResult{Regions: &regions})

	assert.Equal(t, "TOTAL 9.99", rec.Text)
	require.Len(t, rec.Tokens, 2)
	assert.True(t, rec.Tokens[0].HasBox)
	assert.Equal(t, BoundingBox{X1: 10, Y1: 20, X2: 60, Y2: 35}, rec.Tokens[0].Box)
	assert.False(t, rec.Tokens[1].HasBox)
	assert.Equal(t, azureWordConfidence, rec.Tokens[1].Confidence)
}

func TestClassifyAzureError(t *testing.T) {
	unauthorized := autorest.NewErrorWithError(errors.New("denied"), "computervision.BaseClient", "RecognizePrintedTextInStream", nil, "Failure")
	unauthorized.StatusCode = http.StatusUnauthorized

	assert.Equal(t, ClassAuth, ClassifyError(classifyAzureError(unauthorized)))

	unavailable := autorest.NewErrorWithError(errors.New("oops"), "computervision.BaseClient", "RecognizePrintedTextInStream", nil, "Failure")
	unavailable.StatusCode = http.StatusServiceUnavailable
	assert.Equal(t, ClassNetwork, ClassifyError(classifyAzureError(unavailable)))

	assert.True(t, apperrors.IsType(classifyAzureError(errors.New("weird")), apperrors.ErrorTypeOCR))
}

func TestNewRecognizers_RequireConfig(t *testing.T) {
	_, err := NewAzureVisionRecognizer("", "")
	assert.Error(t, err)

	_, err = NewDocumentAIRecognizer(context.Background(), DocumentAIConfig{})
	assert.Error(t, err)

	assert.Equal(t, []string{"eng", "deu"}, NewTesseractRecognizer("eng+deu").languages)
	assert.Equal(t, "tesseract", NewTesseractRecognizer("").Name())
}
