// Package metrics holds the dashboard's Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics are registered on their own registry so tests can create as many
// instances as they like.
//
// Metrics:
//   - dashboard_fetch_outcomes_total{code} - project fetches by result code ("ok" on success)
//   - dashboard_fetch_duration_seconds{code} - histogram of project fetch times
//   - dashboard_stream_connections{transport} - open sse/ws connections
//   - dashboard_broadcasts_total{type} - messages broadcast to live connections
//   - dashboard_broadcast_dropped_total - sinks removed after a failed write
//   - dashboard_webhook_requests_total{result} - inbound webhook deliveries by result
type Metrics struct {
	Registry *prometheus.Registry

	FetchOutcomes     *prometheus.CounterVec
	FetchDuration     *prometheus.HistogramVec
	StreamConnections *prometheus.GaugeVec
	Broadcasts        *prometheus.CounterVec
	BroadcastDropped  prometheus.Counter
	WebhookRequests   *prometheus.CounterVec
}

// New creates and registers all metrics on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		FetchOutcomes: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dashboard_fetch_outcomes_total",
				Help: "Total project fetches by result code",
			},
			[]string{"code"},
		),
		FetchDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dashboard_fetch_duration_seconds",
				Help:    "Duration of project fetches in seconds, retries included",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"code"},
		),
		StreamConnections: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "dashboard_stream_connections",
				Help: "Currently open live update connections",
			},
			[]string{"transport"},
		),
		Broadcasts: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dashboard_broadcasts_total",
				Help: "Total messages broadcast to live connections",
			},
			[]string{"type"},
		),
		BroadcastDropped: f.NewCounter(
			prometheus.CounterOpts{
				Name: "dashboard_broadcast_dropped_total",
				Help: "Total live connections removed after a failed write",
			},
		),
		WebhookRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dashboard_webhook_requests_total",
				Help: "Total inbound webhook deliveries by result",
			},
			[]string{"result"},
		),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
