package cache

import (
	"time"

	"github.com/dgraph-io/ristretto"
	"go.uber.org/zap"
)

// RistrettoCache is a cache implementation using Ristretto.
// Ristretto evicts on its own schedule; expiry visible to callers is decided
// by the injected clock so that staleness is deterministic.
type RistrettoCache struct {
	cache  *ristretto.Cache
	clock  Clock
	logger *zap.Logger
}

// RistrettoConfig holds configuration for Ristretto cache.
type RistrettoConfig struct {
	NumCounters int64 // Number of keys to track frequency (10x max items)
	MaxCost     int64 // Maximum cost of cache (in items)
	BufferItems int64 // Number of keys per Get buffer
	Clock       Clock // Defaults to time.Now
	Logger      *zap.Logger
}

type entry struct {
	value     interface{}
	expiresAt time.Time
}

// NewRistrettoCache creates a new Ristretto-backed cache.
func NewRistrettoCache(cfg *RistrettoConfig) (*RistrettoCache, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
		Metrics:     true,
	})
	if err != nil {
		return nil, err
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RistrettoCache{
		cache:  cache,
		clock:  clock,
		logger: logger,
	}, nil
}

// Get retrieves a value from the cache.
func (r *RistrettoCache) Get(key string) (interface{}, bool) {
	raw, found := r.cache.Get(key)
	if !found {
		CacheMissesTotal.Inc()
		r.logger.Debug("cache-miss", zap.String("key", key))
		return nil, false
	}

	e, ok := raw.(entry)
	if !ok {
		CacheMissesTotal.Inc()
		return nil, false
	}

	if !e.expiresAt.IsZero() && !r.clock().Before(e.expiresAt) {
		CacheExpiredTotal.Inc()
		r.logger.Debug("cache-expired",
			zap.String("key", key),
			zap.Time("expired-at", e.expiresAt))
		return nil, false
	}

	CacheHitsTotal.Inc()
	r.logger.Debug("cache-hit", zap.String("key", key))
	return e.value, true
}

// Set stores a value in the cache with a TTL. A zero TTL never expires.
func (r *RistrettoCache) Set(key string, value interface{}, ttl time.Duration) bool {
	e := entry{value: value}
	if ttl > 0 {
		e.expiresAt = r.clock().Add(ttl)
	}

	// Cost = 1 (we're counting items, not bytes)
	success := r.cache.SetWithTTL(key, e, 1, ttl)
	if success {
		CacheSetsTotal.Inc()
		r.logger.Debug("cache-set",
			zap.String("key", key),
			zap.Duration("ttl", ttl))
	}
	return success
}

// Delete removes a value from the cache.
func (r *RistrettoCache) Delete(key string) {
	r.cache.Del(key)
	CacheDeletesTotal.Inc()
	r.logger.Debug("cache-delete", zap.String("key", key))
}

// Clear removes all values from the cache.
func (r *RistrettoCache) Clear() {
	r.cache.Clear()
	r.logger.Info("cache-cleared")
}

// Close closes the cache and releases resources.
func (r *RistrettoCache) Close() {
	r.cache.Close()
	r.logger.Info("cache-closed")
}

// Wait blocks until all pending writes have been applied.
func (r *RistrettoCache) Wait() {
	r.cache.Wait()
}
