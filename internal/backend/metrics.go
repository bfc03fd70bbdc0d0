package backend

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// RequestsTotal counts backend calls by path and status code.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trader_backend_requests_total",
			Help: "Total number of trading backend requests",
		},
		[]string{"path", "status"},
	)

	// RequestDurationSeconds tracks backend latency by path.
	RequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trader_backend_request_duration_seconds",
			Help:    "Duration of trading backend requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path"},
	)
)
