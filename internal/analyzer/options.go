package analyzer

// AnalysisOptions provides flexible configuration for image quality analysis
type AnalysisOptions struct {
	// Longest edge of the buffer used for lighting statistics
	MaxSampleDimension int

	// Blur detection is off by default; the base penalty model has no blur check
	DetectBlur    bool
	BlurThreshold float64
}

// DefaultOptions returns default analysis options
func DefaultOptions() AnalysisOptions {
	return AnalysisOptions{
		MaxSampleDimension: 200,
		DetectBlur:         false,
		BlurThreshold:      100.0,
	}
}

// WithBlurDetection enables the Laplacian-variance blur check
func (opts AnalysisOptions) WithBlurDetection(threshold float64) AnalysisOptions {
	opts.DetectBlur = true
	if threshold > 0 {
		opts.BlurThreshold = threshold
	}
	return opts
}

// WithSampleDimension overrides the downsample bound
func (opts AnalysisOptions) WithSampleDimension(dim int) AnalysisOptions {
	if dim > 0 {
		opts.MaxSampleDimension = dim
	}
	return opts
}
