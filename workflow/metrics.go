package workflow

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects Prometheus-compatible observability for a running
// workflow: queue depth, per-executor step latency, retry counts, and
// backpressure events. All series are namespaced "agentflow_".
type Metrics struct {
	queueDepth   prometheus.Gauge
	inflight     prometheus.Gauge
	stepLatency  *prometheus.HistogramVec
	retries      *prometheus.CounterVec
	backpressure *prometheus.CounterVec
}

// NewMetrics registers the full metric set against registry. Pass
// prometheus.DefaultRegisterer for the global registry, or a fresh
// prometheus.NewRegistry() for test isolation.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		queueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "agentflow",
			Name:      "queue_depth",
			Help:      "Number of work items waiting in the frontier.",
		}),
		inflight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "agentflow",
			Name:      "inflight_executors",
			Help:      "Number of executors currently running.",
		}),
		stepLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "agentflow",
			Name:      "step_latency_ms",
			Help:      "Executor invocation latency in milliseconds.",
			Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000},
		}, []string{"run_id", "executor_id", "status"}),
		retries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentflow",
			Name:      "retries_total",
			Help:      "Cumulative retry attempts across all executors.",
		}, []string{"run_id", "executor_id"}),
		backpressure: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentflow",
			Name:      "backpressure_events_total",
			Help:      "Queue saturation events that applied backpressure.",
		}, []string{"run_id"}),
	}
}

func (m *Metrics) UpdateQueueDepth(depth int) {
	m.queueDepth.Set(float64(depth))
}

func (m *Metrics) UpdateInflight(n int) {
	m.inflight.Set(float64(n))
}

func (m *Metrics) RecordStepLatency(runID, executorID string, latency time.Duration, status string) {
	m.stepLatency.WithLabelValues(runID, executorID, status).Observe(float64(latency.Milliseconds()))
}

func (m *Metrics) IncrementRetries(runID, executorID string) {
	m.retries.WithLabelValues(runID, executorID).Inc()
}

func (m *Metrics) IncrementBackpressure(runID string) {
	m.backpressure.WithLabelValues(runID).Inc()
}
