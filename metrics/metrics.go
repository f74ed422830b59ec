// Package metrics exposes Prometheus instrumentation for the dispatcher and
// the Atomic Task Executor, grounded on
// _examples/kadirpekel-hector/pkg/observability/metrics.go's
// namespace/registry/CounterVec-per-concern layout, trimmed down to the
// concerns this runtime actually has (dispatch calls, task execution, tool
// execution) instead of hector's full agent/session/HTTP/RAG surface.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus counters/histograms for one running instance
// of the evaluator. A nil *Metrics is valid and every method is a no-op on
// it, so instrumentation can be wired in unconditionally and only incurs
// cost when a caller actually constructs one via New.
type Metrics struct {
	registry *prometheus.Registry

	dispatchCalls    *prometheus.CounterVec
	dispatchDuration *prometheus.HistogramVec
	dispatchErrors   *prometheus.CounterVec

	taskCalls    *prometheus.CounterVec
	taskDuration *prometheus.HistogramVec

	toolCalls    *prometheus.CounterVec
	toolDuration *prometheus.HistogramVec
}

// New builds a Metrics instance registered under namespace (e.g.
// "sexpflow").
func New(namespace string) *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.dispatchCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "dispatcher",
		Name:      "calls_total",
		Help:      "Total number of Dispatch invocations, by identifier and result status.",
	}, []string{"identifier", "status"})

	m.dispatchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "dispatcher",
		Name:      "call_duration_seconds",
		Help:      "Dispatch invocation duration in seconds.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15),
	}, []string{"identifier"})

	m.dispatchErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "dispatcher",
		Name:      "errors_total",
		Help:      "Total number of Dispatch invocations that resulted in a TaskFailure, by reason.",
	}, []string{"identifier", "reason"})

	m.taskCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "task",
		Name:      "executions_total",
		Help:      "Total number of atomic task executions, by template name and status.",
	}, []string{"template", "status"})

	m.taskDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "task",
		Name:      "execution_duration_seconds",
		Help:      "Atomic task execution duration in seconds.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 15),
	}, []string{"template"})

	m.toolCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "tool",
		Name:      "invocations_total",
		Help:      "Total number of direct tool invocations, by tool name and status.",
	}, []string{"tool", "status"})

	m.toolDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "tool",
		Name:      "invocation_duration_seconds",
		Help:      "Direct tool invocation duration in seconds.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15),
	}, []string{"tool"})

	m.registry.MustRegister(
		m.dispatchCalls, m.dispatchDuration, m.dispatchErrors,
		m.taskCalls, m.taskDuration,
		m.toolCalls, m.toolDuration,
	)
	return m
}

// RecordDispatch records one Dispatch call's identifier, resulting status,
// and duration.
func (m *Metrics) RecordDispatch(identifier, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.dispatchCalls.WithLabelValues(identifier, status).Inc()
	m.dispatchDuration.WithLabelValues(identifier).Observe(d.Seconds())
}

// RecordDispatchError records a Dispatch call that failed with the given
// TaskFailure reason code (spec.md §7).
func (m *Metrics) RecordDispatchError(identifier, reason string) {
	if m == nil {
		return
	}
	m.dispatchErrors.WithLabelValues(identifier, reason).Inc()
}

// RecordTaskExecution records one atomic task execution.
func (m *Metrics) RecordTaskExecution(template, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.taskCalls.WithLabelValues(template, status).Inc()
	m.taskDuration.WithLabelValues(template).Observe(d.Seconds())
}

// RecordToolInvocation records one direct tool invocation.
func (m *Metrics) RecordToolInvocation(tool, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.toolCalls.WithLabelValues(tool, status).Inc()
	m.toolDuration.WithLabelValues(tool).Observe(d.Seconds())
}

// Handler returns an http.Handler serving the Prometheus exposition format,
// suitable for mounting at e.g. "/metrics" by a host process; cmd/sexpflow
// does not serve it.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying Prometheus registry, e.g. for tests that
// want to scrape gathered metric families directly.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}
