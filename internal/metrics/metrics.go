// Package metrics exposes Prometheus instrumentation for the dispatch
// engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DispatchMetrics counts dispatch attempts per channel and outcome and
// tracks how long each attempt takes. It satisfies the dispatcher's
// Observer contract.
type DispatchMetrics struct {
	registry   *prometheus.Registry
	dispatched *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewDispatchMetrics builds the metric set on a dedicated registry so
// repeated construction never collides on metric names.
func NewDispatchMetrics() *DispatchMetrics {
	dispatched := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ordersend",
		Name:      "orders_dispatched_total",
		Help:      "Total dispatch attempts by channel and outcome.",
	}, []string{"channel", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ordersend",
		Name:      "order_dispatch_duration_seconds",
		Help:      "Time from order acceptance to transport outcome.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"channel"})

	registry := prometheus.NewRegistry()
	registry.MustRegister(dispatched, duration)

	return &DispatchMetrics{
		registry:   registry,
		dispatched: dispatched,
		duration:   duration,
	}
}

// Observe records one finished dispatch.
func (m *DispatchMetrics) Observe(channel, outcome string, seconds float64) {
	m.dispatched.WithLabelValues(channel, outcome).Inc()
	m.duration.WithLabelValues(channel).Observe(seconds)
}

// Handler serves the Prometheus exposition endpoint for this metric set.
func (m *DispatchMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
