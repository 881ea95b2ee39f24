// Package observability holds the Prometheus metrics and the HTTP
// logging/metrics middleware for the pylearn server.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/michaelbrown/pylearn/internal/executor"
)

// MetricsCollector holds all Prometheus metrics for pylearn.
// Uses a custom registry, no global state.
type MetricsCollector struct {
	Registry *prometheus.Registry

	// Execution metrics.
	ExecutionsTotal   *prometheus.CounterVec
	ExecutionDuration prometheus.Histogram
	ActiveExecutions  prometheus.Gauge

	// HTTP metrics.
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetricsCollector creates a MetricsCollector with all metrics registered
// on a custom prometheus.Registry.
func NewMetricsCollector() *MetricsCollector {
	reg := prometheus.NewRegistry()

	m := &MetricsCollector{
		Registry: reg,

		ExecutionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pylearn",
			Name:      "executions_total",
			Help:      "Total code executions by outcome.",
		}, []string{"status"}),

		ExecutionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "pylearn",
			Name:      "execution_duration_seconds",
			Help:      "Code execution duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}),

		ActiveExecutions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pylearn",
			Name:      "active_executions",
			Help:      "Number of interpreter processes currently running.",
		}),

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pylearn",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		}, []string{"method", "route", "status"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pylearn",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		m.ExecutionsTotal,
		m.ExecutionDuration,
		m.ActiveExecutions,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
	)

	return m
}

var _ executor.Observer = (*MetricsCollector)(nil)

// ExecutionStarted implements executor.Observer.
func (m *MetricsCollector) ExecutionStarted() {
	m.ActiveExecutions.Inc()
}

// ExecutionFinished implements executor.Observer.
func (m *MetricsCollector) ExecutionFinished(outcome executor.Outcome, d time.Duration) {
	m.ActiveExecutions.Dec()
	m.ExecutionsTotal.WithLabelValues(string(outcome)).Inc()
	m.ExecutionDuration.Observe(d.Seconds())
}

// ExecutionRejected implements executor.Observer.
func (m *MetricsCollector) ExecutionRejected() {
	m.ExecutionsTotal.WithLabelValues(string(executor.OutcomeRejected)).Inc()
}
