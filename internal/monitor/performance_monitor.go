package monitor

import (
	"maps"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/anime-shed/receipt-inspector-go/internal/confidence"
)

// DefaultDocumentType is used when the caller gives no hint
const DefaultDocumentType = "receipt"

// Option configures a PerformanceMonitor
type Option func(*PerformanceMonitor)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(m *PerformanceMonitor) { m.now = now }
}

// WithoutMemorySnapshots skips runtime.ReadMemStats on every step
func WithoutMemorySnapshots() Option {
	return func(m *PerformanceMonitor) { m.snapshots = false }
}

// StepOption annotates the step being ended
type StepOption func(*ProcessingStep)

// WithError sets the step's error message
func WithError(msg string) StepOption {
	return func(s *ProcessingStep) { s.ErrorMessage = msg }
}

// WithConfidence sets the step's confidence score
func WithConfidence(c float64) StepOption {
	return func(s *ProcessingStep) { s.ConfidenceScore = &c }
}

// PerformanceMonitor times the stages of one request. It belongs to a single
// request and is not safe for concurrent use.
type PerformanceMonitor struct {
	now       func() time.Time
	snapshots bool

	session  ProcessingSession
	open     *ProcessingStep
	finished *ProcessingSession
}

// NewPerformanceMonitor opens a session. imageQuality is clamped to [0,1].
func NewPerformanceMonitor(imageQuality float64, documentType string, opts ...Option) *PerformanceMonitor {
	m := &PerformanceMonitor{now: time.Now, snapshots: true}
	for _, opt := range opts {
		opt(m)
	}

	documentType = strings.TrimSpace(documentType)
	if documentType == "" {
		documentType = DefaultDocumentType
	}

	m.session = ProcessingSession{
		SessionID:    uuid.NewString(),
		StartTime:    m.nowMillis(),
		ImageQuality: clampUnit(imageQuality),
		DocumentType: documentType,
		Metrics: PerformanceMetrics{
			ConfidenceDistribution: confidence.NewDistribution(),
		},
		ProcessingSteps: []ProcessingStep{},
	}
	return m
}

// SessionID identifies the session in logs
func (m *PerformanceMonitor) SessionID() string {
	return m.session.SessionID
}

// SetImageQuality records the quality once the analyzer has run
func (m *PerformanceMonitor) SetImageQuality(q float64) {
	m.session.ImageQuality = clampUnit(q)
}

// StartStep opens a step. A step that is still open is ended as successful first.
func (m *PerformanceMonitor) StartStep(name string) {
	if m.finished != nil {
		return
	}
	if m.open != nil {
		m.EndStep(true)
	}
	m.open = &ProcessingStep{Name: name, StartTime: m.nowMillis()}
}

// EndStep closes the open step. A failed step increments the error bucket of its stage.
// Without an open step it does nothing.
func (m *PerformanceMonitor) EndStep(success bool, opts ...StepOption) {
	if m.open == nil {
		return
	}
	step := *m.open
	m.open = nil

	step.EndTime = max(m.nowMillis(), step.StartTime)
	step.Duration = step.EndTime - step.StartTime
	step.Success = success
	for _, opt := range opts {
		opt(&step)
	}
	if m.snapshots {
		step.Memory = takeMemorySnapshot()
	}

	stage := StageOf(step.Name)
	m.session.Metrics.addTime(stage, step.Duration)
	if !success {
		m.session.Metrics.ErrorCounts.increment(stage)
	}
	m.session.ProcessingSteps = append(m.session.ProcessingSteps, step)
}

// RecordConfidence adds one field confidence to the distribution
func (m *PerformanceMonitor) RecordConfidence(c float64) {
	if m.finished != nil {
		return
	}
	m.session.Metrics.ConfidenceDistribution.Add(c)
}

// FinishSession closes any open step, stamps the end time and returns the session.
// Later calls return the same record.
func (m *PerformanceMonitor) FinishSession(overallQuality float64) ProcessingSession {
	if m.finished != nil {
		return cloneSession(*m.finished)
	}
	if m.open != nil {
		m.EndStep(true)
	}

	m.session.EndTime = max(m.nowMillis(), m.session.StartTime)
	m.session.Metrics.ProcessingTime = m.session.EndTime - m.session.StartTime
	m.session.OverallQuality = clampUnit(overallQuality)
	m.session.Metrics.ConfidenceDistribution.Add(m.session.OverallQuality)
	if m.snapshots {
		m.session.Memory = takeMemorySnapshot()
	}

	done := cloneSession(m.session)
	m.finished = &done
	return cloneSession(done)
}

func (m *PerformanceMonitor) nowMillis() int64 {
	return m.now().UnixMilli()
}

func cloneSession(s ProcessingSession) ProcessingSession {
	s.ProcessingSteps = slices.Clone(s.ProcessingSteps)
	s.Metrics.ConfidenceDistribution = maps.Clone(s.Metrics.ConfidenceDistribution)
	return s
}

func clampUnit(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
