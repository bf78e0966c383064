package observability

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type moduleMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

type nodeMetrics struct {
	operations *prometheus.CounterVec
	events     *prometheus.CounterVec
	settled    *prometheus.CounterVec
}

var (
	moduleMetricsOnce sync.Once
	moduleRegistry    *moduleMetrics

	nodeMetricsOnce sync.Once
	nodeRegistry    *nodeMetrics
)

// ModuleMetrics returns the lazily-initialised registry used to record
// JSON-RPC method activity.
func ModuleMetrics() *moduleMetrics {
	moduleMetricsOnce.Do(func() {
		moduleRegistry = &moduleMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "bazaar",
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "Total JSON-RPC requests segmented by module and method.",
			}, []string{"module", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "bazaar",
				Subsystem: "rpc",
				Name:      "errors_total",
				Help:      "Total JSON-RPC errors segmented by module, method, and status code.",
			}, []string{"module", "method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "bazaar",
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "bazaar",
				Subsystem: "rpc",
				Name:      "throttles_total",
				Help:      "Count of requests rejected by the rate limiter.",
			}, []string{"module", "reason"}),
		}
		prometheus.MustRegister(
			moduleRegistry.requests,
			moduleRegistry.errors,
			moduleRegistry.latency,
			moduleRegistry.throttles,
		)
	})
	return moduleRegistry
}

// Observe records the outcome of a request. The status code should be the
// HTTP status the error maps to, or 200 on success.
func (m *moduleMetrics) Observe(module, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if status >= 400 {
		outcome = "error"
	}
	m.requests.WithLabelValues(module, method, outcome).Inc()
	if status >= 400 {
		m.errors.WithLabelValues(module, method, fmt.Sprintf("%d", status)).Inc()
	}
	m.latency.WithLabelValues(module, method).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter. Reasons should be stable
// strings such as "rate_limit".
func (m *moduleMetrics) RecordThrottle(module, reason string) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(module, reason).Inc()
}

// NodeMetrics tracks committed and aborted state transitions.
func NodeMetrics() *nodeMetrics {
	nodeMetricsOnce.Do(func() {
		nodeRegistry = &nodeMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "bazaar",
				Subsystem: "node",
				Name:      "operations_total",
				Help:      "State-mutating operations segmented by name and result.",
			}, []string{"op", "result"}),
			events: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "bazaar",
				Subsystem: "node",
				Name:      "events_total",
				Help:      "Committed events segmented by type.",
			}, []string{"type"}),
			settled: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "bazaar",
				Subsystem: "market",
				Name:      "settled_offers_total",
				Help:      "Offers leaving escrow segmented by final status.",
			}, []string{"status"}),
		}
		prometheus.MustRegister(nodeRegistry.operations, nodeRegistry.events, nodeRegistry.settled)
	})
	return nodeRegistry
}

// RecordOperation counts one mutating call. A nil error counts as committed.
func (m *nodeMetrics) RecordOperation(op string, err error) {
	if m == nil {
		return
	}
	result := "committed"
	if err != nil {
		result = "aborted"
	}
	m.operations.WithLabelValues(op, result).Inc()
}

// RecordEvent counts a committed event by type.
func (m *nodeMetrics) RecordEvent(eventType string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(strings.TrimSpace(eventType)).Inc()
}

// RecordSettlement counts an offer reaching a terminal status.
func (m *nodeMetrics) RecordSettlement(status string) {
	if m == nil {
		return
	}
	if status == "" {
		status = "unknown"
	}
	m.settled.WithLabelValues(status).Inc()
}
