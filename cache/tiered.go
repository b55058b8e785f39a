package cache

import (
	"context"
	"errors"
	"time"
)

// Tiered puts a fast near store in front of a shared or persistent far
// store. Reads check near first, then far; writes populate both.
type Tiered struct {
	near Cache
	far  Cache
}

// NewTiered creates a two-level cache.
func NewTiered(near, far Cache) *Tiered {
	return &Tiered{near: near, far: far}
}

// Get checks near, then far. On a far hit the value is promoted into near
// without a TTL, since the remaining lifetime in far is unknown.
func (t *Tiered) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if v, ok, err := t.near.Get(ctx, key); err != nil || ok {
		return v, ok, err
	}
	v, ok, err := t.far.Get(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	_ = t.near.Set(ctx, key, v, 0)
	return v, true, nil
}

// Set writes the value to far, then near.
func (t *Tiered) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	farErr := t.far.Set(ctx, key, val, ttl)
	return errors.Join(farErr, t.near.Set(ctx, key, val, ttl))
}

// Close closes both stores.
func (t *Tiered) Close() error {
	return errors.Join(t.near.Close(), t.far.Close())
}
