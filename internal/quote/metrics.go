package quote

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// FetchesTotal counts depth fetches by result.
	FetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trader_quote_fetches_total",
			Help: "Total number of depth quote fetches",
		},
		[]string{"result"}, // "ok" or "error"
	)

	// SkippedTotal counts lookups skipped because the notional was too small.
	SkippedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trader_quote_skipped_total",
			Help: "Total number of quote lookups skipped below the minimum notional",
		},
	)

	// FetchDurationSeconds tracks depth fetch latency.
	FetchDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "trader_quote_fetch_duration_seconds",
			Help:    "Duration of depth quote fetches",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5},
		},
	)

	// SchedulerFiredTotal counts debounced fetches that actually fired.
	SchedulerFiredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trader_quote_scheduler_fired_total",
			Help: "Total number of debounced quote fetches fired",
		},
	)

	// StaleResultsTotal counts results discarded because newer params arrived.
	StaleResultsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trader_quote_stale_results_total",
			Help: "Total number of quote results discarded as stale",
		},
	)
)
