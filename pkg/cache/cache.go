package cache

import "time"

// Cache is the interface for short-lived lookups such as last known prices.
type Cache interface {
	// Get retrieves a value from the cache.
	// Returns (value, true) if found and not expired, (nil, false) otherwise.
	Get(key string) (interface{}, bool)

	// Set stores a value in the cache with a TTL.
	Set(key string, value interface{}, ttl time.Duration) bool

	// Delete removes a value from the cache.
	Delete(key string)

	// Clear removes all values from the cache.
	Clear()

	// Close closes the cache and releases resources.
	Close()
}

// Clock reports the current time. Expiry is always judged against it.
type Clock func() time.Time
