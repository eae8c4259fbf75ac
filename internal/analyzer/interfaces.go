package analyzer

import "image"

// QualityAnalyzer scores an uploaded image's fitness for OCR
type QualityAnalyzer interface {
	// Analyze never fails; a broken image yields the synthetic retake result
	Analyze(data []byte, mimeType string) Outcome
}

// MetricsCalculator handles pixel statistics over a downsampled buffer
type MetricsCalculator interface {
	Downsample(img image.Image, maxDim int) *image.RGBA
	LuminanceSamples(img *image.RGBA) []float64
	LuminanceStats(samples []float64) (mean, stdDev float64)
	CalculateLaplacianVariance(gray *image.Gray) float64
}
