package analyzer

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/sirupsen/logrus"
	_ "golang.org/x/image/webp"

	"github.com/anime-shed/receipt-inspector-go/internal/logger"
)

const (
	megabyte = 1024 * 1024

	minFileSize = megabyte / 10
	maxFileSize = 10 * megabyte

	minPixels       = 100_000
	lowPixels       = 500_000
	oversizedPixels = 8_000_000

	maxAspectRatio = 3.0
	minAspectRatio = 0.2

	darkLuminance   = 60.0
	brightLuminance = 220.0
	minContrast     = 30.0

	suggestionThreshold = 70
)

var genericSuggestions = []string{
	"Place the receipt on a flat, well-lit surface",
	"Hold the camera steady and make sure the text is in focus",
}

// qualityAnalyzer applies the additive penalty model to one image
type qualityAnalyzer struct {
	calculator MetricsCalculator
	opts       AnalysisOptions
}

// NewQualityAnalyzer creates an analyzer with default options
func NewQualityAnalyzer() QualityAnalyzer {
	return NewQualityAnalyzerWithOptions(DefaultOptions())
}

// NewQualityAnalyzerWithOptions creates an analyzer with custom options
func NewQualityAnalyzerWithOptions(opts AnalysisOptions) QualityAnalyzer {
	if opts.MaxSampleDimension <= 0 {
		opts.MaxSampleDimension = DefaultOptions().MaxSampleDimension
	}
	return &qualityAnalyzer{
		calculator: NewMetricsCalculator(),
		opts:       opts,
	}
}

// AnalyzeImageQuality scores data with default options and returns the result only.
// A failed analysis returns the synthetic retake result.
func AnalyzeImageQuality(data []byte, mimeType string) ImageQualityResult {
	return NewQualityAnalyzer().Analyze(data, mimeType).Result
}

// Analyze runs every check; none of them exits early
func (qa *qualityAnalyzer) Analyze(data []byte, mimeType string) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("quality analysis panicked: %v", r)
			logger.WithError(err).Error("Image quality analysis failed")
			outcome = Outcome{Result: failureResult(), Failure: err}
		}
	}()

	mimeType = resolveMimeType(data, mimeType)
	acc := newQualityAccumulator()
	m := ImageMetrics{FileSize: int64(len(data)), MimeType: mimeType}

	qa.checkFileSize(acc, m)

	if !strings.HasPrefix(mimeType, "image/") {
		acc.penalize(IssueResolution, SeverityHigh, 50,
			fmt.Sprintf("Unsupported file type %q; please upload an image", mimeType),
			"Upload a JPEG, PNG or WebP photo of the receipt")
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		logger.WithFields(logrus.Fields{
			"mime_type": mimeType,
			"size":      len(data),
			"error":     err.Error(),
		}).Warn("Unable to decode image header")
		return Outcome{Result: failureResult(), Failure: fmt.Errorf("decode image config: %w", err)}
	}
	m.Width, m.Height = cfg.Width, cfg.Height

	qa.checkResolution(acc, m)
	qa.checkAspectRatio(acc, m)

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Outcome{Result: failureResult(), Failure: fmt.Errorf("decode image: %w", err)}
	}

	sample := qa.calculator.Downsample(img, qa.opts.MaxSampleDimension)
	lum := qa.calculator.LuminanceSamples(sample)
	m.SampledPixels = len(lum)
	m.AvgLuminance, m.LuminanceStd = qa.calculator.LuminanceStats(lum)
	qa.checkLighting(acc, m)

	if qa.opts.DetectBlur {
		m.LaplacianVar = qa.calculator.CalculateLaplacianVariance(toGray(sample))
		qa.checkBlur(acc, m)
	}

	logger.WithFields(logrus.Fields{
		"metrics": m.String(),
		"score":   acc.score,
	}).Debug("Image quality analyzed")

	return Outcome{Result: acc.result()}
}

func (qa *qualityAnalyzer) checkFileSize(acc *qualityAccumulator, m ImageMetrics) {
	switch {
	case m.FileSize < minFileSize:
		acc.penalize(IssueFileSize, SeverityHigh, 30,
			fmt.Sprintf("File is very small (%.2f MB); the image is likely too compressed", float64(m.FileSize)/megabyte),
			"Take the photo at a higher quality setting")
	case m.FileSize > maxFileSize:
		acc.penalize(IssueFileSize, SeverityMedium, 10,
			fmt.Sprintf("File is large (%.1f MB) and may be slow to process", float64(m.FileSize)/megabyte),
			"")
	}
}

func (qa *qualityAnalyzer) checkResolution(acc *qualityAccumulator, m ImageMetrics) {
	pixels := m.totalPixels()
	switch {
	case pixels < minPixels:
		acc.penalize(IssueResolution, SeverityHigh, 40,
			fmt.Sprintf("Resolution is too low (%dx%d)", m.Width, m.Height),
			"Move closer to the receipt or use a higher camera resolution")
	case pixels < lowPixels:
		acc.penalize(IssueResolution, SeverityMedium, 20,
			fmt.Sprintf("Resolution is low (%dx%d); small text may not be readable", m.Width, m.Height),
			"")
	case pixels > oversizedPixels:
		acc.penalize(IssueResolution, SeverityLow, 5,
			fmt.Sprintf("Resolution is very high (%dx%d) and will be slow to process", m.Width, m.Height),
			"")
	}
}

func (qa *qualityAnalyzer) checkAspectRatio(acc *qualityAccumulator, m ImageMetrics) {
	ratio := m.aspectRatio()
	if ratio > maxAspectRatio || ratio < minAspectRatio {
		acc.penalize(IssueAspectRatio, SeverityMedium, 15,
			fmt.Sprintf("Unusual aspect ratio (%.2f); the receipt may be cropped", ratio),
			"Make sure the whole receipt is inside the frame")
	}
}

func (qa *qualityAnalyzer) checkLighting(acc *qualityAccumulator, m ImageMetrics) {
	switch {
	case m.AvgLuminance < darkLuminance:
		acc.penalize(IssueLighting, SeverityHigh, 25,
			"Image is too dark",
			"Retake the photo in better lighting or turn on the flash")
	case m.AvgLuminance > brightLuminance:
		acc.penalize(IssueLighting, SeverityMedium, 20,
			"Image is overexposed",
			"Avoid direct light and glare on the receipt")
	}

	if m.LuminanceStd < minContrast {
		acc.penalize(IssueLighting, SeverityMedium, 15,
			"Low contrast between text and background",
			"Place the receipt on a dark, contrasting background")
	}
}

func (qa *qualityAnalyzer) checkBlur(acc *qualityAccumulator, m ImageMetrics) {
	if m.LaplacianVar < qa.opts.BlurThreshold {
		acc.penalize(IssueBlur, SeverityMedium, 15,
			fmt.Sprintf("Image appears blurry (sharpness %.0f)", m.LaplacianVar),
			"Tap to focus before taking the photo")
	}
}

// resolveMimeType trusts the declared type unless it is missing or generic
func resolveMimeType(data []byte, declared string) string {
	declared = strings.ToLower(strings.TrimSpace(declared))
	if i := strings.IndexByte(declared, ';'); i >= 0 {
		declared = strings.TrimSpace(declared[:i])
	}
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	return mimetype.Detect(data).String()
}

// qualityAccumulator collects penalties in detection order
type qualityAccumulator struct {
	score       int
	issues      []QualityIssue
	suggestions []string
}

func newQualityAccumulator() *qualityAccumulator {
	return &qualityAccumulator{score: 100, issues: []QualityIssue{}, suggestions: []string{}}
}

func (a *qualityAccumulator) penalize(t IssueType, sev IssueSeverity, penalty int, message, suggestion string) {
	a.score -= penalty
	a.issues = append(a.issues, QualityIssue{Type: t, Severity: sev, Message: message})
	if suggestion != "" {
		a.suggestions = append(a.suggestions, suggestion)
	}
}

func (a *qualityAccumulator) result() ImageQualityResult {
	score := max(a.score, 0)
	suggestions := a.suggestions
	if score < suggestionThreshold && len(suggestions) == 0 {
		suggestions = append(suggestions, genericSuggestions...)
	}
	return ImageQualityResult{
		Score:          score,
		Issues:         a.issues,
		Recommendation: RecommendationForScore(score),
		Suggestions:    suggestions,
	}
}
