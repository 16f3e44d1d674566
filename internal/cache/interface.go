package cache

import (
	"context"
	"time"
)

// Cache defines the operations of a key-value cache with TTLs.
// T is the type of value stored in the cache (e.g. int64 or a struct).
type Cache[T any] interface {
	// Get retrieves a single value from cache.
	// Returns ErrCacheMiss if the key does not exist or has expired.
	Get(ctx context.Context, key string) (T, error)

	// Set stores a single value in cache with TTL
	Set(ctx context.Context, key string, value T, ttl time.Duration) error

	// Delete removes a key from cache
	Delete(ctx context.Context, key string) error

	// GetWithFetch returns the cached value or, on a miss, calls fetchFunc,
	// stores its result for ttl and returns it. fetchFunc errors are returned
	// unchanged and nothing is cached.
	GetWithFetch(
		ctx context.Context,
		key string,
		ttl time.Duration,
		fetchFunc func(ctx context.Context, key string) (T, error),
	) (T, error)

	// Close closes the cache connection
	Close() error

	// Health checks if the cache is healthy
	Health(ctx context.Context) error
}
