// Package cache provides the byte stores behind the SWR cache: a bounded
// in-process L1 backed by ristretto, a Redis L2, a SQLite store and a tiered
// combination of two stores.
package cache

import (
	"context"
	"time"
)

// Cache stores opaque values by key. Set replaces the whole value; readers
// observe either the previous or the new value, never a mix.
type Cache interface {
	// Get retrieves a value by key. The boolean indicates a cache hit.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value under key with the given TTL. A zero TTL means the
	// entry has no automatic expiration.
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error

	// Close releases the resources held by the store.
	Close() error
}
