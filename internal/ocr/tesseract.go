package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/otiai10/gosseract/v2"

	"github.com/anime-shed/receipt-inspector-go/internal/logger"
)

// TesseractRecognizer runs the local Tesseract engine through gosseract
type TesseractRecognizer struct {
	languages []string
}

// NewTesseractRecognizer creates a recognizer for the given "+"-separated language list
func NewTesseractRecognizer(language string) *TesseractRecognizer {
	if language == "" {
		language = "eng"
	}
	return &TesseractRecognizer{languages: strings.Split(language, "+")}
}

// Name implements Recognizer
func (r *TesseractRecognizer) Name() string { return "tesseract" }

// Recognize implements Recognizer. The engine call is not interruptible; ctx is only
// checked before it starts.
func (r *TesseractRecognizer) Recognize(ctx context.Context, data []byte, mimeType string) (*Recognition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(r.languages...); err != nil {
		return nil, fmt.Errorf("set tesseract language %v: %w", r.languages, err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_AUTO); err != nil {
		return nil, fmt.Errorf("set page segmentation mode: %w", err)
	}
	if err := client.SetImageFromBytes(data); err != nil {
		return nil, fmt.Errorf("load image into tesseract: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return nil, fmt.Errorf("tesseract text extraction: %w", err)
	}
	text = Normalize(text)
	if text == "" {
		return nil, ErrNoText
	}

	rec := &Recognition{Text: text, Provider: r.Name()}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		// Text without geometry is still usable
		logger.WithError(err).Warn("Tesseract returned no word boxes")
		rec.Tokens = tokensFromText(text, 0.5)
	} else {
		rec.Tokens = tokensFromBoxes(boxes)
	}

	if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		rec.PageWidth, rec.PageHeight = float64(cfg.Width), float64(cfg.Height)
	}
	rec.Duration = time.Since(start)
	return rec, nil
}

func tokensFromBoxes(boxes []gosseract.BoundingBox) []Token {
	tokens := make([]Token, 0, len(boxes))
	for _, b := range boxes {
		word := strings.TrimSpace(b.Word)
		if word == "" {
			continue
		}
		tokens = append(tokens, Token{
			Text: word,
			Box: BoundingBox{
				X1: float64(b.Box.Min.X),
				Y1: float64(b.Box.Min.Y),
				X2: float64(b.Box.Max.X),
				Y2: float64(b.Box.Max.Y),
			},
			HasBox: true,
			// Tesseract reports 0-100
			Confidence: clampConfidence(b.Confidence / 100),
		})
	}
	return tokens
}
