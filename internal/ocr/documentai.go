package ocr

import (
	"context"
	"fmt"
	"strings"
	"time"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"google.golang.org/api/option"
)

// DocumentAIConfig identifies a Google Document AI OCR processor
type DocumentAIConfig struct {
	ProjectID       string
	Location        string
	ProcessorID     string
	CredentialsFile string
}

func (c DocumentAIConfig) processorName() string {
	return fmt.Sprintf("projects/%s/locations/%s/processors/%s", c.ProjectID, c.Location, c.ProcessorID)
}

// DocumentAIRecognizer sends images to a Document AI processor
type DocumentAIRecognizer struct {
	client *documentai.DocumentProcessorClient
	cfg    DocumentAIConfig
}

// NewDocumentAIRecognizer dials the regional Document AI endpoint
func NewDocumentAIRecognizer(ctx context.Context, cfg DocumentAIConfig) (*DocumentAIRecognizer, error) {
	if cfg.ProjectID == "" || cfg.Location == "" || cfg.ProcessorID == "" {
		return nil, fmt.Errorf("document ai requires project, location and processor id")
	}

	opts := []option.ClientOption{
		option.WithEndpoint(fmt.Sprintf("%s-documentai.googleapis.com:443", cfg.Location)),
	}
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := documentai.NewDocumentProcessorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Document AI client: %w", err)
	}
	return &DocumentAIRecognizer{client: client, cfg: cfg}, nil
}

// Name implements Recognizer
func (r *DocumentAIRecognizer) Name() string { return "documentai" }

// Close releases the gRPC connection
func (r *DocumentAIRecognizer) Close() error {
	return r.client.Close()
}

// Recognize implements Recognizer
func (r *DocumentAIRecognizer) Recognize(ctx context.Context, data []byte, mimeType string) (*Recognition, error) {
	start := time.Now()
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	req := &documentaipb.ProcessRequest{
		Name: r.cfg.processorName(),
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  data,
				MimeType: mimeType,
			},
		},
		SkipHumanReview: true,
	}

	resp, err := r.client.ProcessDocument(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to process document: %w", err)
	}

	rec := recognitionFromDocument(resp.GetDocument())
	if rec.Text == "" {
		return nil, ErrNoText
	}
	rec.Provider = r.Name()
	rec.Duration = time.Since(start)
	return rec, nil
}

// recognitionFromDocument flattens the first page's tokens into page-pixel boxes
func recognitionFromDocument(doc *documentaipb.Document) *Recognition {
	rec := &Recognition{}
	if doc == nil {
		return rec
	}
	rec.Text = Normalize(doc.GetText())
	if len(doc.GetPages()) == 0 {
		rec.Tokens = tokensFromText(rec.Text, 0.5)
		return rec
	}

	page := doc.GetPages()[0]
	dim := page.GetDimension()
	if dim != nil {
		rec.PageWidth, rec.PageHeight = float64(dim.GetWidth()), float64(dim.GetHeight())
	}

	for _, tok := range page.GetTokens() {
		layout := tok.GetLayout()
		word := strings.TrimSpace(textFromLayout(layout, doc.GetText()))
		if word == "" {
			continue
		}
		t := Token{Text: word, Confidence: clampConfidence(float64(layout.GetConfidence()))}
		if box, ok := boxFromLayout(layout, dim); ok {
			t.Box, t.HasBox = box, true
		}
		rec.Tokens = append(rec.Tokens, t)
	}
	return rec
}

func textFromLayout(layout *documentaipb.Document_Page_Layout, fullText string) string {
	if layout == nil || layout.GetTextAnchor() == nil {
		return ""
	}
	runes := []rune(fullText)
	var sb strings.Builder
	for _, seg := range layout.GetTextAnchor().GetTextSegments() {
		start, end := int(seg.GetStartIndex()), int(seg.GetEndIndex())
		end = min(end, len(runes))
		start = max(0, min(start, end))
		sb.WriteString(string(runes[start:end]))
	}
	return sb.String()
}

// boxFromLayout scales normalized vertices by the page dimension
func boxFromLayout(layout *documentaipb.Document_Page_Layout, dim *documentaipb.Document_Page_Dimension) (BoundingBox, bool) {
	if layout == nil || layout.GetBoundingPoly() == nil || dim == nil {
		return BoundingBox{}, false
	}
	vertices := layout.GetBoundingPoly().GetNormalizedVertices()
	if len(vertices) < 4 {
		return BoundingBox{}, false
	}

	w, h := float64(dim.GetWidth()), float64(dim.GetHeight())
	box := BoundingBox{X1: w, Y1: h}
	for _, v := range vertices {
		x, y := float64(v.GetX())*w, float64(v.GetY())*h
		box.X1, box.Y1 = min(box.X1, x), min(box.Y1, y)
		box.X2, box.Y2 = max(box.X2, x), max(box.Y2, y)
	}
	return box, true
}
