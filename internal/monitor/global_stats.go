package monitor

import (
	"maps"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/anime-shed/receipt-inspector-go/internal/confidence"
)

// StatsSnapshot is a point-in-time copy of GlobalStats
type StatsSnapshot struct {
	TotalSessions          int64                   `json:"total_sessions"`
	FailedSessions         int64                   `json:"failed_sessions"`
	AverageProcessingTime  float64                 `json:"average_processing_time_ms"`
	ConfidenceDistribution confidence.Distribution `json:"confidence_distribution"`
	ErrorCounts            ErrorCounts             `json:"error_counts"`
	ErrorRates             map[Stage]float64       `json:"error_rates"`
	SessionsByDocumentType map[string]int64        `json:"sessions_by_document_type"`
	LastUpdated            *time.Time              `json:"last_updated,omitempty"`
}

// GlobalStats folds finished sessions into a process-wide aggregate.
// Updates are serialized by a mutex. The Prometheus collectors only ever grow;
// Reset clears the in-memory aggregate alone.
type GlobalStats struct {
	mu sync.Mutex

	totalSessions  int64
	failedSessions int64
	avgProcessing  float64
	distribution   confidence.Distribution
	errorCounts    ErrorCounts
	byDocType      map[string]int64
	lastUpdated    time.Time

	sessionsTotal   *prometheus.CounterVec
	processingTime  prometheus.Histogram
	stageErrors     *prometheus.CounterVec
	confidenceTiers *prometheus.CounterVec
}

// NewGlobalStats creates an empty aggregate with unregistered collectors
func NewGlobalStats() *GlobalStats {
	g := &GlobalStats{
		distribution: confidence.NewDistribution(),
		byDocType:    make(map[string]int64),
	}
	g.initMetrics()
	return g
}

func (g *GlobalStats) initMetrics() {
	g.sessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "receipt_inspector",
			Name:      "sessions_total",
			Help:      "Receipt processing sessions by document type and outcome.",
		},
		[]string{"document_type", "success"},
	)
	g.processingTime = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "receipt_inspector",
			Name:      "processing_duration_seconds",
			Help:      "End-to-end receipt processing time.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)
	g.stageErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "receipt_inspector",
			Name:      "stage_errors_total",
			Help:      "Failed pipeline steps by stage.",
		},
		[]string{"stage"},
	)
	g.confidenceTiers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "receipt_inspector",
			Name:      "confidence_total",
			Help:      "Recorded confidence values by tier.",
		},
		[]string{"tier"},
	)
}

// Register adds the collectors to reg
func (g *GlobalStats) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{g.sessionsTotal, g.processingTime, g.stageErrors, g.confidenceTiers} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Update folds one finished session in. The running average uses (avg*(n-1)+new)/n.
func (g *GlobalStats) Update(s ProcessingSession) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.totalSessions++
	n := float64(g.totalSessions)
	g.avgProcessing = (g.avgProcessing*(n-1) + float64(s.Metrics.ProcessingTime)) / n

	failed := s.Failed()
	if failed {
		g.failedSessions++
	}
	g.distribution.Merge(s.Metrics.ConfidenceDistribution)
	g.errorCounts.add(s.Metrics.ErrorCounts)
	g.byDocType[s.DocumentType]++
	g.lastUpdated = time.Now()

	success := "true"
	if failed {
		success = "false"
	}
	g.sessionsTotal.WithLabelValues(s.DocumentType, success).Inc()
	g.processingTime.Observe(float64(s.Metrics.ProcessingTime) / 1000)
	for stage, count := range s.Metrics.ErrorCounts.ByStage() {
		if count > 0 {
			g.stageErrors.WithLabelValues(string(stage)).Add(float64(count))
		}
	}
	for tier, count := range s.Metrics.ConfidenceDistribution {
		if count > 0 {
			g.confidenceTiers.WithLabelValues(string(tier)).Add(float64(count))
		}
	}
}

// Snapshot copies the aggregate
func (g *GlobalStats) Snapshot() StatsSnapshot {
	g.mu.Lock()
	defer g.mu.Unlock()

	snap := StatsSnapshot{
		TotalSessions:          g.totalSessions,
		FailedSessions:         g.failedSessions,
		AverageProcessingTime:  g.avgProcessing,
		ConfidenceDistribution: maps.Clone(g.distribution),
		ErrorCounts:            g.errorCounts,
		ErrorRates:             make(map[Stage]float64),
		SessionsByDocumentType: maps.Clone(g.byDocType),
	}
	for stage, count := range g.errorCounts.ByStage() {
		rate := 0.0
		if g.totalSessions > 0 {
			rate = float64(count) / float64(g.totalSessions)
		}
		snap.ErrorRates[stage] = rate
	}
	if !g.lastUpdated.IsZero() {
		t := g.lastUpdated
		snap.LastUpdated = &t
	}
	return snap
}

// Reset clears the aggregate. It is an operator action.
func (g *GlobalStats) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.totalSessions = 0
	g.failedSessions = 0
	g.avgProcessing = 0
	g.distribution = confidence.NewDistribution()
	g.errorCounts = ErrorCounts{}
	g.byDocType = make(map[string]int64)
	g.lastUpdated = time.Time{}
}
