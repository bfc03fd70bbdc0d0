package wallet

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// SignaturesTotal counts typed-data signature requests by result.
	SignaturesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trader_wallet_signatures_total",
		Help: "Total number of typed-data signature requests",
	}, []string{"result"}) // "ok", "rejected", "disconnected" or "error"

	// Connected is 1 while the wallet session is connected.
	Connected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "trader_wallet_connected",
		Help: "Whether the wallet session is connected (1) or not (0)",
	})

	// PositionLookupsTotal counts Data API position lookups by result.
	PositionLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trader_wallet_position_lookups_total",
		Help: "Total number of position lookups against the Data API",
	}, []string{"result"})
)
