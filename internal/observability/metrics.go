package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LikeToggles counts like toggles by outcome ("liked" or "unliked").
	LikeToggles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scribe_post_like_toggles_total",
		Help: "Total number of like toggles by result",
	}, []string{"result"})

	// PostViews counts successful view increments.
	PostViews = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scribe_post_views_total",
		Help: "Total number of post views recorded",
	})

	// SubPostReconciliations counts reconciliation actions applied on post update.
	SubPostReconciliations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scribe_subpost_reconcile_actions_total",
		Help: "Sub-post rows touched by post update reconciliation, by action",
	}, []string{"action"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scribe_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// WebSocketConnections is the gauge of live realtime feed connections.
	WebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "scribe_websocket_connections",
		Help: "Number of active WebSocket feed connections",
	})

	// WebSocketBackpressureDrops counts events dropped for slow clients.
	WebSocketBackpressureDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scribe_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	})

	// EventsPublished counts realtime events by type and delivery path.
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scribe_events_published_total",
		Help: "Realtime events published, by type and delivery path",
	}, []string{"event_type", "path"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}
