package extraction

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for document extraction.
type Metrics struct {
	// Extraction latency by document kind
	Latency *prometheus.HistogramVec

	// Extraction outcomes by document kind and category ("ok" on success)
	Outcomes *prometheus.CounterVec

	// Cache lookups by result: "hit", "miss", "error"
	CacheLookups *prometheus.CounterVec
}

// NewMetrics registers the extraction metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "casework_extraction_duration_seconds",
			Help:    "Duration of document extraction by document kind",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"kind"}),

		Outcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "casework_extraction_outcomes_total",
			Help: "Total extraction outcomes by document kind and failure category",
		}, []string{"kind", "outcome"}),

		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "casework_extraction_cache_lookups_total",
			Help: "Extraction cache lookups by result",
		}, []string{"result"}),
	}
}

// ObserveLatency records the duration of one document extraction.
func (m *Metrics) ObserveLatency(kind string, d time.Duration) {
	if m != nil {
		m.Latency.WithLabelValues(kind).Observe(d.Seconds())
	}
}

// IncrementOutcome records an extraction outcome.
func (m *Metrics) IncrementOutcome(kind, outcome string) {
	if m != nil {
		m.Outcomes.WithLabelValues(kind, outcome).Inc()
	}
}

// IncrementCacheLookup records a cache lookup result.
func (m *Metrics) IncrementCacheLookup(result string) {
	if m != nil {
		m.CacheLookups.WithLabelValues(result).Inc()
	}
}
