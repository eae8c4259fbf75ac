package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/services/cognitiveservices/v3.0/computervision"
	"github.com/Azure/go-autorest/autorest"

	apperrors "github.com/anime-shed/receipt-inspector-go/internal/errors"
)

// The printed-text OCR endpoint reports no per-word confidence
const azureWordConfidence = 0.8

// AzureVisionRecognizer calls the Azure Computer Vision printed text endpoint
type AzureVisionRecognizer struct {
	client computervision.BaseClient
}

// NewAzureVisionRecognizer creates a recognizer for a Cognitive Services endpoint
func NewAzureVisionRecognizer(endpoint, key string) (*AzureVisionRecognizer, error) {
	if endpoint == "" || key == "" {
		return nil, fmt.Errorf("azure vision requires an endpoint and a key")
	}
	client := computervision.New(endpoint)
	client.Authorizer = autorest.NewCognitiveServicesAuthorizer(key)
	return &AzureVisionRecognizer{client: client}, nil
}

// Name implements Recognizer
func (r *AzureVisionRecognizer) Name() string { return "azure" }

// Recognize implements Recognizer
func (r *AzureVisionRecognizer) Recognize(ctx context.Context, data []byte, mimeType string) (*Recognition, error) {
	start := time.Now()

	result, err := r.client.RecognizePrintedTextInStream(
		ctx,
		true,
		io.NopCloser(bytes.NewReader(data)),
		computervision.OcrLanguages(computervision.En),
	)
	if err != nil {
		return nil, classifyAzureError(err)
	}

	rec := recognitionFromOcrResult(result)
	if rec.Text == "" {
		return nil, ErrNoText
	}
	rec.Provider = r.Name()
	rec.Duration = time.Since(start)
	return rec, nil
}

func recognitionFromOcrResult(result computervision.OcrResult) *Recognition {
	rec := &Recognition{}
	if result.Regions == nil {
		return rec
	}

	var text strings.Builder
	for _, region := range *result.Regions {
		if region.Lines == nil {
			continue
		}
		for _, line := range *region.Lines {
			if line.Words == nil {
				continue
			}
			words := make([]string, 0, len(*line.Words))
			for _, word := range *line.Words {
				if word.Text == nil || *word.Text == "" {
					continue
				}
				t := Token{Text: *word.Text, Confidence: azureWordConfidence}
				if word.BoundingBox != nil {
					if box, ok := parseAzureBox(*word.BoundingBox); ok {
						t.Box, t.HasBox = box, true
						rec.PageWidth = max(rec.PageWidth, box.X2)
						rec.PageHeight = max(rec.PageHeight, box.Y2)
					}
				}
				rec.Tokens = append(rec.Tokens, t)
				words = append(words, *word.Text)
			}
			text.WriteString(strings.Join(words, " "))
			text.WriteString("\n")
		}
	}
	rec.Text = Normalize(text.String())
	return rec
}

// parseAzureBox reads the "left,top,width,height" form
func parseAzureBox(s string) (BoundingBox, bool) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return BoundingBox{}, false
	}
	var v [4]float64
	for i, p := range parts {
		n, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return BoundingBox{}, false
		}
		v[i] = n
	}
	return BoundingBox{X1: v[0], Y1: v[1], X2: v[0] + v[2], Y2: v[1] + v[3]}, true
}

func classifyAzureError(err error) error {
	var detailed autorest.DetailedError
	if errors.As(err, &detailed) {
		if code, ok := detailed.StatusCode.(int); ok {
			switch {
			case code == http.StatusUnauthorized || code == http.StatusForbidden:
				return apperrors.NewUnauthorizedError("azure vision rejected credentials", err)
			case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
				return apperrors.NewTimeoutError("azure vision timed out", err)
			case code >= 500:
				return apperrors.NewNetworkError("azure vision unavailable", err)
			}
		}
	}
	return apperrors.NewOCRError("azure vision request failed", err)
}
