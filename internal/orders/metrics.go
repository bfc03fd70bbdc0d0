package orders

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics are global by design
var (
	// CancelsTotal tracks cancel requests by result.
	CancelsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trader_order_cancels_total",
			Help: "Total number of order cancel requests",
		},
		[]string{"result"},
	)
)
