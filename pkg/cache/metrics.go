package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	CacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trader_cache_hits_total",
		Help: "Total number of cache hits",
	})

	CacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trader_cache_misses_total",
		Help: "Total number of cache misses",
	})

	CacheExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trader_cache_expired_total",
		Help: "Total number of lookups that found an entry past its TTL",
	})

	CacheSetsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trader_cache_sets_total",
		Help: "Total number of cache sets",
	})

	CacheDeletesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trader_cache_deletes_total",
		Help: "Total number of cache deletes",
	})
)
