package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics instruments pipeline runs.
type Metrics struct {
	Runs          *prometheus.CounterVec
	StageDuration *prometheus.HistogramVec
	RunDuration   prometheus.Histogram
	SinkFailures  *prometheus.CounterVec
}

// NewMetrics registers pipeline metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Runs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "casework_pipeline_runs_total",
			Help: "Pipeline runs by result",
		}, []string{"result"}), // result: decided, cancelled, error

		StageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "casework_pipeline_stage_duration_seconds",
			Help:    "Duration of each pipeline stage",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"stage"}),

		RunDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "casework_pipeline_run_duration_seconds",
			Help:    "Duration of a full case evaluation",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),

		SinkFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "casework_pipeline_sink_failures_total",
			Help: "Downstream sink failures by sink",
		}, []string{"sink"}),
	}
}

// IncrementRun records the result of a run.
func (m *Metrics) IncrementRun(result string) {
	if m != nil {
		m.Runs.WithLabelValues(result).Inc()
	}
}

// ObserveStage records a stage duration.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m != nil {
		m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
	}
}

// ObserveRun records a full run duration.
func (m *Metrics) ObserveRun(d time.Duration) {
	if m != nil {
		m.RunDuration.Observe(d.Seconds())
	}
}

// IncrementSinkFailure records a failed sink call.
func (m *Metrics) IncrementSinkFailure(sink string) {
	if m != nil {
		m.SinkFailures.WithLabelValues(sink).Inc()
	}
}
