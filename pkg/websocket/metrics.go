package websocket

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics are global by design
var (
	// ActiveConnections tracks connected dashboard clients.
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "trader_ws_active_connections",
		Help: "Number of connected dashboard WebSocket clients",
	})

	// MessagesSentTotal tracks messages written to clients.
	MessagesSentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trader_ws_messages_sent_total",
		Help: "Total number of WebSocket messages written to clients",
	})

	// MessagesDroppedTotal tracks messages dropped for slow clients.
	MessagesDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trader_ws_messages_dropped_total",
			Help: "Total number of WebSocket messages dropped",
		},
		[]string{"reason"},
	)

	// ConnectionDuration tracks client connection lifetime.
	ConnectionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "trader_ws_connection_duration_seconds",
		Help:    "Duration of client WebSocket connections before disconnect",
		Buckets: []float64{1, 10, 60, 300, 600, 1800, 3600, 14400, 86400},
	})
)
