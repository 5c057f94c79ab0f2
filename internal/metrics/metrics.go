// SPDX-License-Identifier: AGPL-3.0-or-later

// Package metrics defines the Prometheus collectors exported at
// /admin/metrics, named for PAGI's connection/request/worker surface
// alongside the admin HTTP handler latency of the surface itself. Only
// AdminRequestDuration is updated (by internal/middleware.Prometheus); the
// other collectors are registered and exported, but no code updates them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	registry *prometheus.Registry

	// ActiveConnections is the current admitted-connection count for
	// this Worker, mirroring Listener.ActiveConnections.
	ActiveConnections prometheus.Gauge

	// ConnectionsTotal counts every admitted connection since process
	// start.
	ConnectionsTotal prometheus.Counter

	// ConnectionsRejectedTotal counts connections rejected with 503 due
	// to the admission cap (spec.md §4.2).
	ConnectionsRejectedTotal prometheus.Counter

	// RequestDuration observes HTTP exchange latency by scope type.
	RequestDuration *prometheus.HistogramVec

	// ReceiveQueueDepth observes the ReceiveQueue length at the moment a
	// request completes, a proxy for backpressure (spec.md §5).
	ReceiveQueueDepth prometheus.Histogram

	// WebSocketMessagesTotal counts frames by direction ("in"/"out").
	WebSocketMessagesTotal *prometheus.CounterVec

	// WorkerRestartsTotal counts Supervisor-initiated Worker respawns.
	WorkerRestartsTotal prometheus.Counter

	// AdminRequestDuration observes latency of the operator-facing admin
	// surface itself (internal/admin), by route and status code, distinct
	// from RequestDuration's application-exchange latency.
	AdminRequestDuration *prometheus.HistogramVec
)

func init() {
	registry = prometheus.NewRegistry()
	factory := promauto.With(registry)

	ActiveConnections = factory.NewGauge(prometheus.GaugeOpts{
		Name: "pagi_active_connections",
		Help: "Current number of admitted, open connections on this worker.",
	})
	ConnectionsTotal = factory.NewCounter(prometheus.CounterOpts{
		Name: "pagi_connections_total",
		Help: "Total number of connections admitted by this worker.",
	})
	ConnectionsRejectedTotal = factory.NewCounter(prometheus.CounterOpts{
		Name: "pagi_connections_rejected_total",
		Help: "Total number of connections rejected due to the admission cap.",
	})
	RequestDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pagi_request_duration_seconds",
		Help:    "Duration of one request/exchange, by scope type.",
		Buckets: prometheus.DefBuckets,
	}, []string{"scope_type"})
	ReceiveQueueDepth = factory.NewHistogram(prometheus.HistogramOpts{
		Name:    "pagi_receive_queue_depth",
		Help:    "ReceiveQueue length observed when an exchange completes.",
		Buckets: prometheus.LinearBuckets(0, 2, 10),
	})
	WebSocketMessagesTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "pagi_websocket_messages_total",
		Help: "Total number of WebSocket frames, by direction.",
	}, []string{"direction"})
	WorkerRestartsTotal = factory.NewCounter(prometheus.CounterOpts{
		Name: "pagi_worker_restarts_total",
		Help: "Total number of Worker processes respawned by the Supervisor.",
	})
	AdminRequestDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pagi_admin_request_duration_seconds",
		Help:    "Duration of requests served by the admin surface, by route and status.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "status"})
}

// Registry returns the registry every PAGI collector is registered to, for
// /admin/metrics to expose via promhttp.HandlerFor.
func Registry() *prometheus.Registry {
	return registry
}
