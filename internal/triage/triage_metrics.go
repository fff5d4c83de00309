package triage

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for the triage subsystem.
type Metrics struct {
	TriagesTotal       *prometheus.CounterVec
	TriageDuration     prometheus.Histogram
	StageDuration      *prometheus.HistogramVec
	PriorityScore      prometheus.Histogram
	Confidence         prometheus.Histogram
	ReviewsTotal       prometheus.Counter
	RetrievalFaults    *prometheus.CounterVec
	ActionsTotal       *prometheus.CounterVec
	AuditFailuresTotal prometheus.Counter
}

// NewMetrics registers and returns triage metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TriagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ticketry_triages_total",
			Help: "Total triage runs by decided priority and category.",
		}, []string{"priority", "category"}),
		TriageDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ticketry_triage_duration_seconds",
			Help:    "End-to-end duration of triage runs in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms .. ~8s
		}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ticketry_triage_stage_duration_seconds",
			Help:    "Duration of each triage stage in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms .. ~4s
		}, []string{"stage"}),
		PriorityScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ticketry_priority_score",
			Help:    "Distribution of computed priority scores.",
			Buckets: prometheus.LinearBuckets(0, 10, 11), // 0 .. 100
		}),
		Confidence: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ticketry_category_confidence",
			Help:    "Distribution of category confidence.",
			Buckets: prometheus.LinearBuckets(0.1, 0.1, 10), // 0.1 .. 1.0
		}),
		ReviewsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ticketry_human_reviews_total",
			Help: "Total triage runs flagged for human review.",
		}),
		RetrievalFaults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ticketry_retrieval_faults_total",
			Help: "Retrieval failures that degraded to defaults, by source.",
		}, []string{"source"}),
		ActionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ticketry_workflow_actions_total",
			Help: "Workflow actions by kind and outcome.",
		}, []string{"kind", "outcome"}),
		AuditFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ticketry_audit_failures_total",
			Help: "Audit records that could not be written.",
		}),
	}

	reg.MustRegister(
		m.TriagesTotal,
		m.TriageDuration,
		m.StageDuration,
		m.PriorityScore,
		m.Confidence,
		m.ReviewsTotal,
		m.RetrievalFaults,
		m.ActionsTotal,
		m.AuditFailuresTotal,
	)

	return m
}

// Hooks returns Hooks that record into the corresponding metrics.
func (m *Metrics) Hooks() Hooks {
	return Hooks{
		OnStage: func(s Stage, d time.Duration) {
			m.StageDuration.WithLabelValues(string(s)).Observe(d.Seconds())
		},
		OnRetrievalFault: func(source string) {
			m.RetrievalFaults.WithLabelValues(source).Inc()
		},
		OnAction: func(kind ActionKind, outcome Outcome) {
			m.ActionsTotal.WithLabelValues(string(kind), string(outcome)).Inc()
		},
		OnAuditFailure: func() {
			m.AuditFailuresTotal.Inc()
		},
		OnComplete: func(r *Result) {
			m.TriagesTotal.WithLabelValues(string(r.Decision.Priority), r.Decision.Category).Inc()
			m.TriageDuration.Observe(r.ProcessingTime.Seconds())
			m.PriorityScore.Observe(float64(r.Scoring.PriorityScore))
			m.Confidence.Observe(r.Decision.Confidence)
			if r.Decision.NeedsHumanReview {
				m.ReviewsTotal.Inc()
			}
		},
	}
}
