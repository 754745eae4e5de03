package scoring

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeOK      = "ok"
	outcomeImputed = "imputed"
	outcomeTimeout = "timeout"
	outcomeError   = "error"
)

// Metrics instruments classifier calls.
type Metrics struct {
	Latency  *prometheus.HistogramVec
	Outcomes *prometheus.CounterVec
}

// NewMetrics registers scoring metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "casework_scoring_duration_seconds",
			Help:    "Duration of eligibility predictions by model",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"model"}),
		Outcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "casework_scoring_outcomes_total",
			Help: "Eligibility prediction outcomes by model",
		}, []string{"model", "outcome"}), // outcome: ok, imputed, timeout, error
	}
}

// ObserveLatency records a prediction duration.
func (m *Metrics) ObserveLatency(model string, d time.Duration) {
	if m != nil {
		m.Latency.WithLabelValues(model).Observe(d.Seconds())
	}
}

// IncrementOutcome records a prediction outcome.
func (m *Metrics) IncrementOutcome(model, outcome string) {
	if m != nil {
		m.Outcomes.WithLabelValues(model, outcome).Inc()
	}
}

func outcomeOf(err error) string {
	if errors.Is(err, ErrScoringTimeout) {
		return outcomeTimeout
	}
	return outcomeError
}
