package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the decision module.
type Metrics struct {
	// Decision outcomes by status and rule path
	DecisionOutcome *prometheus.CounterVec

	// Validation confidence seen at decision time
	Confidence prometheus.Histogram

	// Eligibility probability seen at decision time
	Score prometheus.Histogram
}

var unitBuckets = []float64{0.1, 0.2, 0.3, 0.35, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1}

// New creates a new Metrics instance with all decision module metrics registered.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		DecisionOutcome: f.NewCounterVec(prometheus.CounterOpts{
			Name: "casework_decision_outcomes_total",
			Help: "Total decision outcomes by status and rule path",
		}, []string{"status", "path"}), // path: "all_documents_failed", "skipped", "scored"

		Confidence: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "casework_decision_confidence",
			Help:    "Validation confidence of decided cases",
			Buckets: unitBuckets,
		}),

		Score: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "casework_decision_score",
			Help:    "Eligibility probability of decided cases",
			Buckets: unitBuckets,
		}),
	}
}

// IncrementOutcome records a decision outcome.
func (m *Metrics) IncrementOutcome(status, path string) {
	if m != nil {
		m.DecisionOutcome.WithLabelValues(status, path).Inc()
	}
}

// ObserveConfidence records the validation confidence of a decided case.
func (m *Metrics) ObserveConfidence(c float64) {
	if m != nil {
		m.Confidence.Observe(c)
	}
}

// ObserveScore records the eligibility probability of a decided case.
func (m *Metrics) ObserveScore(p float64) {
	if m != nil {
		m.Score.Observe(p)
	}
}
