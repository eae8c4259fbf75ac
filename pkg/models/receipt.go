package models

import (
	"github.com/anime-shed/receipt-inspector-go/internal/analyzer"
	"github.com/anime-shed/receipt-inspector-go/internal/confidence"
	"github.com/anime-shed/receipt-inspector-go/internal/monitor"
	"github.com/anime-shed/receipt-inspector-go/internal/ocr"
	"github.com/anime-shed/receipt-inspector-go/pkg/validation"
)

// ProcessingResult is everything a reviewer needs for one receipt
type ProcessingResult struct {
	Source          string                                 `json:"source,omitempty"`
	DocumentType    string                                 `json:"document_type"`
	QualityResult   analyzer.ImageQualityResult            `json:"quality_result"`
	OCR             *OCRSummary                            `json:"ocr,omitempty"`
	ExtractedFields ExtractedFields                        `json:"extracted_fields"`
	Validation      map[string]validation.ValidationResult `json:"validation"`
	Session         monitor.ProcessingSession              `json:"session"`
	Warnings        []string                               `json:"warnings,omitempty"`
}

// OCRSummary describes the recognition call. Skipped is set when the quality gate
// held OCR back; Error and ErrorClass are set when the call failed.
type OCRSummary struct {
	Provider       string        `json:"provider,omitempty"`
	Text           string        `json:"text,omitempty"`
	TokenCount     int           `json:"token_count"`
	MeanConfidence float64       `json:"mean_confidence"`
	Geometry       bool          `json:"geometry"`
	Skipped        bool          `json:"skipped,omitempty"`
	Error          string        `json:"error,omitempty"`
	ErrorClass     string        `json:"error_class,omitempty"`
	Accuracy       *ocr.Accuracy `json:"accuracy,omitempty"`
}

// ExtractedFields holds one report per field. Fields that were not found are nil.
type ExtractedFields struct {
	Vendor    *FieldReport     `json:"vendor"`
	Date      *FieldReport     `json:"date"`
	Subtotal  *FieldReport     `json:"subtotal,omitempty"`
	Tax       *FieldReport     `json:"tax,omitempty"`
	Total     *FieldReport     `json:"total"`
	LineItems []LineItemReport `json:"line_items"`
}

// FieldReport is an extracted value with its confidence and validation feedback
type FieldReport struct {
	Value      string                      `json:"value"`
	Confidence float64                     `json:"confidence"`
	Tier       confidence.Tier             `json:"tier"`
	Validation validation.ValidationResult `json:"validation"`
	Notes      []string                    `json:"notes,omitempty"`
}

// LineItemReport is one purchased article
type LineItemReport struct {
	Description string                      `json:"description"`
	Quantity    int                         `json:"quantity"`
	Amount      string                      `json:"amount"`
	Confidence  float64                     `json:"confidence"`
	Tier        confidence.Tier             `json:"tier"`
	Validation  validation.ValidationResult `json:"validation"`
}

// BatchItemResult pairs one upload with its outcome
type BatchItemResult struct {
	Filename string            `json:"filename"`
	Result   *ProcessingResult `json:"result,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// BatchResponse is returned by the batch endpoint in upload order
type BatchResponse struct {
	Results   []BatchItemResult `json:"results"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
}
