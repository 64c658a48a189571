// Package cache provides caching for rendered schema documents so that
// repeated document reads in service mode do not hit the store on every
// request.
package cache

import (
	"context"
	"fmt"
	"time"
)

// Cache is the interface shared by all cache implementations.
type Cache interface {
	// Get retrieves a value from the cache. Returns ErrCacheMiss if the key
	// is absent or expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with a TTL. A zero TTL uses the configured default.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from the cache.
	Delete(ctx context.Context, key string) error

	// Clear removes all values under the cache's prefix.
	Clear(ctx context.Context) error

	// Exists reports whether a key is present and unexpired.
	Exists(ctx context.Context, key string) (bool, error)

	// Close releases any resources held by the cache.
	Close() error
}

// Config holds settings common to all cache implementations.
type Config struct {
	// DefaultTTL applies when Set is called with a zero TTL.
	DefaultTTL time.Duration

	// Prefix is prepended to every key to namespace cache entries.
	Prefix string
}

// DefaultConfig returns the configuration used when none is supplied.
func DefaultConfig() Config {
	return Config{
		DefaultTTL: 5 * time.Minute,
		Prefix:     "schemalens:",
	}
}

// ErrCacheMiss indicates a key was not found in the cache.
type ErrCacheMiss struct {
	Key string
}

func (e ErrCacheMiss) Error() string {
	return fmt.Sprintf("cache miss for key: %s", e.Key)
}

// IsCacheMiss reports whether an error is a cache miss.
func IsCacheMiss(err error) bool {
	_, ok := err.(ErrCacheMiss)
	return ok
}

// DocumentKey builds the cache key under which a run's schema document is
// stored.
func DocumentKey(runID string) string {
	return "document:" + runID
}
