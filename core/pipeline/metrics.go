package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics records engine activity. A nil *Metrics records nothing.
type Metrics struct {
	runs         *prometheus.CounterVec
	steps        *prometheus.CounterVec
	stepDuration *prometheus.HistogramVec
	rows         *prometheus.GaugeVec
}

// NewMetrics creates the engine collectors on reg. A nil reg leaves them
// unregistered. Like promauto, it panics when reg already holds them.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dataopt_runs_total",
			Help: "Pipeline runs by outcome.",
		}, []string{"outcome"}),
		steps: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dataopt_steps_total",
			Help: "Pipeline steps by operation and outcome.",
		}, []string{"operation", "outcome"}),
		stepDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dataopt_step_duration_seconds",
			Help:    "Time spent applying a step.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		rows: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dataopt_dataset_rows",
			Help: "Rows in the dataset last produced under each name.",
		}, []string{"dataset"}),
	}
}

func (m *Metrics) observeRun(outcome string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(outcome).Inc()
}

func (m *Metrics) observeStep(operation string, outcome StepStatus, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.steps.WithLabelValues(operation, string(outcome)).Inc()
	if outcome != StatusSkipped {
		m.stepDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
	}
}

func (m *Metrics) observeRows(name string, rows int) {
	if m == nil {
		return
	}
	m.rows.WithLabelValues(name).Set(float64(rows))
}
