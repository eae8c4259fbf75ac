package monitor

import (
	"runtime"
	"strings"

	"github.com/anime-shed/receipt-inspector-go/internal/confidence"
)

// Step names used by the receipt pipeline. Error and timing buckets are picked by
// substring, so callers may add suffixes such as "vision-api-retry".
const (
	StepPreprocessing     = "image-preprocessing"
	StepVisionAPI         = "vision-api"
	StepSpatialExtraction = "spatial-extraction"
	StepValidation        = "field-validation"
)

// Stage is a pipeline stage with its own timing and error buckets
type Stage string

const (
	StageVisionAPI         Stage = "vision_api"
	StageSpatialExtraction Stage = "spatial_extraction"
	StageValidation        Stage = "validation"
	StagePreprocessing     Stage = "preprocessing"
	StageOther             Stage = "other"
)

// StageOf maps a step name onto its stage
func StageOf(stepName string) Stage {
	name := strings.ToLower(stepName)
	switch {
	case strings.Contains(name, "vision"):
		return StageVisionAPI
	case strings.Contains(name, "spatial"):
		return StageSpatialExtraction
	case strings.Contains(name, "validation"):
		return StageValidation
	case strings.Contains(name, "preprocessing"):
		return StagePreprocessing
	default:
		return StageOther
	}
}

// MemorySnapshot is a subset of runtime.MemStats
type MemorySnapshot struct {
	HeapAlloc  uint64 `json:"heap_alloc"`
	HeapInuse  uint64 `json:"heap_inuse"`
	Sys        uint64 `json:"sys"`
	NumGC      uint32 `json:"num_gc"`
	Goroutines int    `json:"goroutines"`
}

func takeMemorySnapshot() *MemorySnapshot {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return &MemorySnapshot{
		HeapAlloc:  ms.HeapAlloc,
		HeapInuse:  ms.HeapInuse,
		Sys:        ms.Sys,
		NumGC:      ms.NumGC,
		Goroutines: runtime.NumGoroutine(),
	}
}

// ProcessingStep is one named stage invocation. Times are epoch milliseconds.
type ProcessingStep struct {
	Name            string          `json:"name"`
	StartTime       int64           `json:"start_time"`
	EndTime         int64           `json:"end_time"`
	Duration        int64           `json:"duration_ms"`
	Success         bool            `json:"success"`
	ErrorMessage    string          `json:"error_message,omitempty"`
	ConfidenceScore *float64        `json:"confidence_score,omitempty"`
	Memory          *MemorySnapshot `json:"memory,omitempty"`
}

// ErrorCounts holds failed steps per stage
type ErrorCounts struct {
	VisionAPIErrors         int `json:"vision_api_errors"`
	SpatialExtractionErrors int `json:"spatial_extraction_errors"`
	ValidationErrors        int `json:"validation_errors"`
	PreprocessingErrors     int `json:"preprocessing_errors"`
}

func (e *ErrorCounts) increment(stage Stage) {
	switch stage {
	case StageVisionAPI:
		e.VisionAPIErrors++
	case StageSpatialExtraction:
		e.SpatialExtractionErrors++
	case StageValidation:
		e.ValidationErrors++
	case StagePreprocessing:
		e.PreprocessingErrors++
	}
}

func (e *ErrorCounts) add(other ErrorCounts) {
	e.VisionAPIErrors += other.VisionAPIErrors
	e.SpatialExtractionErrors += other.SpatialExtractionErrors
	e.ValidationErrors += other.ValidationErrors
	e.PreprocessingErrors += other.PreprocessingErrors
}

// ByStage returns the counts keyed by stage
func (e ErrorCounts) ByStage() map[Stage]int {
	return map[Stage]int{
		StageVisionAPI:         e.VisionAPIErrors,
		StageSpatialExtraction: e.SpatialExtractionErrors,
		StageValidation:        e.ValidationErrors,
		StagePreprocessing:     e.PreprocessingErrors,
	}
}

// PerformanceMetrics aggregates one session. Times are milliseconds.
type PerformanceMetrics struct {
	ProcessingTime         int64                   `json:"processing_time"`
	VisionAPITime          int64                   `json:"vision_api_time"`
	SpatialExtractionTime  int64                   `json:"spatial_extraction_time"`
	ValidationTime         int64                   `json:"validation_time"`
	ImagePreprocessingTime int64                   `json:"image_preprocessing_time"`
	ConfidenceDistribution confidence.Distribution `json:"confidence_distribution"`
	ErrorCounts            ErrorCounts             `json:"error_counts"`
}

func (m *PerformanceMetrics) addTime(stage Stage, ms int64) {
	switch stage {
	case StageVisionAPI:
		m.VisionAPITime += ms
	case StageSpatialExtraction:
		m.SpatialExtractionTime += ms
	case StageValidation:
		m.ValidationTime += ms
	case StagePreprocessing:
		m.ImagePreprocessingTime += ms
	}
}

// ProcessingSession is the record of one receipt-processing request
type ProcessingSession struct {
	SessionID       string             `json:"session_id"`
	StartTime       int64              `json:"start_time"`
	EndTime         int64              `json:"end_time"`
	ImageQuality    float64            `json:"image_quality"`
	DocumentType    string             `json:"document_type"`
	OverallQuality  float64            `json:"overall_quality"`
	Metrics         PerformanceMetrics `json:"metrics"`
	ProcessingSteps []ProcessingStep   `json:"processing_steps"`
	Memory          *MemorySnapshot    `json:"memory,omitempty"`
}

// Failed reports whether any step failed
func (s ProcessingSession) Failed() bool {
	for _, step := range s.ProcessingSteps {
		if !step.Success {
			return true
		}
	}
	return false
}
