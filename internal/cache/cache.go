// Package cache is the process-wide TTL cache for low-churn configuration
// reads. It is best-effort and never a source of truth: undecodable or
// expired entries are misses, Put failures are logged and swallowed by
// callers, and every configuration mutation must invalidate the keys it
// touches. The TTL is only a safety net against missed invalidation paths.
package cache

import "context"

// Cache stores JSON-serialized values under string keys with a fixed TTL.
type Cache interface {
	// Get unmarshals the cached value into dest and reports whether a live
	// entry existed. Deserialization failure is a miss, not an error.
	Get(ctx context.Context, key string, dest any) (bool, error)

	// Put serializes and stores the value with the configured TTL.
	Put(ctx context.Context, key string, value any) error

	// Invalidate removes the given keys.
	Invalidate(ctx context.Context, keys ...string) error

	// InvalidateAll removes every entry this cache owns.
	InvalidateAll(ctx context.Context) error
}
