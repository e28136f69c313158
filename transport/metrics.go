package transport

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks Prometheus metrics for the RPC transport.
//
// All metrics use the "framewire_transport_" prefix. Methods handle a nil
// receiver gracefully, so a nil *Metrics acts as a no-op.
type Metrics struct {
	// RequestsTotal counts requests by route and final status.
	RequestsTotal *prometheus.CounterVec

	// RequestDuration tracks handler dispatch time by route.
	RequestDuration *prometheus.HistogramVec

	// UnimplementedTotal counts requests for routes with no handler.
	UnimplementedTotal prometheus.Counter
}

var (
	metricsOnce     sync.Once
	metricsInstance *Metrics
)

// NewMetrics creates and registers the transport's Prometheus metrics. If
// registerer is nil, prometheus.DefaultRegisterer is used. It is idempotent:
// the metrics are registered exactly once regardless of how many times it
// is called.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	metricsOnce.Do(func() {
		if registerer == nil {
			registerer = prometheus.DefaultRegisterer
		}

		m := &Metrics{
			RequestsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "framewire_transport_requests_total",
					Help: "Total requests dispatched by route and status",
				},
				[]string{"route", "status"},
			),
			RequestDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "framewire_transport_request_duration_seconds",
					Help:    "Handler dispatch duration in seconds, by route",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"route"},
			),
			UnimplementedTotal: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "framewire_transport_unimplemented_total",
					Help: "Total requests for routes with no registered handler",
				},
			),
		}

		registerer.MustRegister(m.RequestsTotal, m.RequestDuration, m.UnimplementedTotal)
		metricsInstance = m
	})

	return metricsInstance
}

// RecordRequest records a completed dispatch: its route, final status, and
// processing duration.
func (m *Metrics) RecordRequest(route string, status Status, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(route, status.Name()).Inc()
	m.RequestDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordUnimplemented records a request for a route with no handler.
func (m *Metrics) RecordUnimplemented() {
	if m == nil {
		return
	}
	m.UnimplementedTotal.Inc()
}
