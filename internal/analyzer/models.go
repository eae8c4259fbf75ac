package analyzer

import "fmt"

// IssueType is the defect category of a QualityIssue
type IssueType string

const (
	IssueResolution  IssueType = "resolution"
	IssueFileSize    IssueType = "fileSize"
	IssueAspectRatio IssueType = "aspectRatio"
	IssueLighting    IssueType = "lighting"
	IssueBlur        IssueType = "blur"
)

// IssueSeverity ranks how much a defect hurts OCR
type IssueSeverity string

const (
	SeverityLow    IssueSeverity = "low"
	SeverityMedium IssueSeverity = "medium"
	SeverityHigh   IssueSeverity = "high"
)

// Recommendation is the tier derived from the quality score
type Recommendation string

const (
	RecommendationExcellent Recommendation = "excellent"
	RecommendationGood      Recommendation = "good"
	RecommendationFair      Recommendation = "fair"
	RecommendationPoor      Recommendation = "poor"
	RecommendationRetake    Recommendation = "retake"
)

// RecommendationForScore maps a 0-100 score onto its tier.
// Thresholds: >=85 excellent, >=70 good, >=50 fair, >=30 poor, else retake.
func RecommendationForScore(score int) Recommendation {
	switch {
	case score >= 85:
		return RecommendationExcellent
	case score >= 70:
		return RecommendationGood
	case score >= 50:
		return RecommendationFair
	case score >= 30:
		return RecommendationPoor
	default:
		return RecommendationRetake
	}
}

// QualityIssue is one detected defect
type QualityIssue struct {
	Type     IssueType     `json:"type"`
	Severity IssueSeverity `json:"severity"`
	Message  string        `json:"message"`
}

// ImageQualityResult is the immutable outcome of analyzing one uploaded image
type ImageQualityResult struct {
	Score          int            `json:"score"`
	Issues         []QualityIssue `json:"issues"`
	Recommendation Recommendation `json:"recommendation"`
	Suggestions    []string       `json:"suggestions"`
}

// Acceptable reports whether the image is worth sending to OCR at the given minimum score.
func (r ImageQualityResult) Acceptable(minScore int) bool {
	return r.Recommendation != RecommendationRetake && r.Score >= minScore
}

// Outcome wraps an ImageQualityResult with the reason analysis could not complete.
// Result is always populated; Failure is set only when the synthetic worst-case result was substituted.
type Outcome struct {
	Result  ImageQualityResult
	Failure error
}

// OK reports whether the analysis ran to completion
func (o Outcome) OK() bool {
	return o.Failure == nil
}

// ImageMetrics holds the raw measurements the scoring model consumes
type ImageMetrics struct {
	FileSize      int64
	MimeType      string
	Width         int
	Height        int
	AvgLuminance  float64
	LuminanceStd  float64
	LaplacianVar  float64
	SampledPixels int
}

func (m ImageMetrics) totalPixels() int {
	return m.Width * m.Height
}

func (m ImageMetrics) aspectRatio() float64 {
	if m.Height == 0 {
		return 0
	}
	return float64(m.Width) / float64(m.Height)
}

func (m ImageMetrics) String() string {
	return fmt.Sprintf("%dx%d %s %dB lum=%.1f std=%.1f", m.Width, m.Height, m.MimeType, m.FileSize, m.AvgLuminance, m.LuminanceStd)
}

func failureResult() ImageQualityResult {
	return ImageQualityResult{
		Score: 0,
		Issues: []QualityIssue{{
			Type:     IssueResolution,
			Severity: SeverityHigh,
			Message:  "Unable to analyze image quality",
		}},
		Recommendation: RecommendationRetake,
		Suggestions:    []string{"Please try uploading a different image"},
	}
}
