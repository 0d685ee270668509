package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"service", "method", "path", "status"},
	)

	HttpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)

	WebSocketConnectionsTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "websocket_connections_active",
			Help: "Current number of active WebSocket connections",
		},
		[]string{"service"},
	)

	BroadcastDeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broadcast_deliveries_total",
			Help: "Frames delivered to session members, by result",
		},
		[]string{"result"},
	)

	BusMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bus_messages_total",
			Help: "Event bus messages by routing key and outcome (published, consumed, dropped)",
		},
		[]string{"routing_key", "outcome"},
	)

	OperationsAppliedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "operations_applied_total",
			Help: "Text operations applied to sessions",
		},
		[]string{"type"},
	)

	OperationApplyDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "operation_apply_duration_seconds",
			Help:    "Time to load, transform, apply and persist one operation",
			Buckets: prometheus.DefBuckets,
		},
	)

	SnapshotCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snapshot_cache_requests_total",
			Help: "Snapshot cache lookups by result",
		},
		[]string{"result"},
	)
)
