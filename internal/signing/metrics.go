package signing

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// PreparedTotal counts prepare calls by result.
	PreparedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trader_signing_prepared_total",
			Help: "Total number of unsigned orders requested from the backend",
		},
		[]string{"result"}, // "ok", "rejected" or "error"
	)

	// SignedTotal counts wallet signature requests by result.
	SignedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trader_signing_signed_total",
			Help: "Total number of wallet signature requests",
		},
		[]string{"result"}, // "ok", "rejected" or "error"
	)

	// SigningDurationSeconds tracks how long the wallet took to sign.
	SigningDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "trader_signing_duration_seconds",
			Help:    "Duration of wallet signature requests",
			Buckets: []float64{.01, .1, .5, 1, 5, 15, 30, 60},
		},
	)
)
