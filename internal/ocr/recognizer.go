package ocr

import (
	"context"
	"math"
	"strings"
	"time"
)

// BoundingBox is a token's axis-aligned extent in page pixels
type BoundingBox struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Height of the box
func (b BoundingBox) Height() float64 { return b.Y2 - b.Y1 }

// Width of the box
func (b BoundingBox) Width() float64 { return b.X2 - b.X1 }

// CenterY is the vertical midpoint
func (b BoundingBox) CenterY() float64 { return (b.Y1 + b.Y2) / 2 }

// Token is one recognized word
type Token struct {
	Text string      `json:"text"`
	Box  BoundingBox `json:"box"`
	// HasBox is false when the provider returned text without geometry
	HasBox bool `json:"has_box"`
	// Confidence in [0,1]
	Confidence float64 `json:"confidence"`
}

// Recognition is the raw output of one OCR call
type Recognition struct {
	Text       string        `json:"text"`
	Tokens     []Token       `json:"tokens"`
	PageWidth  float64       `json:"page_width,omitempty"`
	PageHeight float64       `json:"page_height,omitempty"`
	Provider   string        `json:"provider"`
	Duration   time.Duration `json:"duration"`
}

// HasGeometry reports whether at least one token carries a bounding box
func (r *Recognition) HasGeometry() bool {
	for _, t := range r.Tokens {
		if t.HasBox {
			return true
		}
	}
	return false
}

// MeanConfidence averages token confidences; zero when there are no tokens
func (r *Recognition) MeanConfidence() float64 {
	if len(r.Tokens) == 0 {
		return 0
	}
	var sum float64
	for _, t := range r.Tokens {
		sum += t.Confidence
	}
	return sum / float64(len(r.Tokens))
}

// Recognizer is the boundary to an external text recognition service.
// Implementations perform exactly one call per Recognize and never retry.
type Recognizer interface {
	Recognize(ctx context.Context, data []byte, mimeType string) (*Recognition, error)
	Name() string
}

// tokensFromText splits plain text into box-less tokens at a fixed confidence
func tokensFromText(text string, confidence float64) []Token {
	fields := strings.Fields(text)
	tokens := make([]Token, 0, len(fields))
	for _, f := range fields {
		tokens = append(tokens, Token{Text: f, Confidence: confidence})
	}
	return tokens
}

func clampConfidence(c float64) float64 {
	switch {
	case math.IsNaN(c) || c < 0:
		return 0
	case c > 1:
		return 1
	default:
		return c
	}
}
