// Package swr implements a stale-while-revalidate cache over a byte store.
//
// A hit returns the stored value immediately and refreshes it in the
// background; a failed refresh leaves the stored value untouched. A miss
// fetches synchronously and stores the result only when the fetch
// succeeds.
package swr

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"
	"golang.org/x/sync/singleflight"

	"github.com/Keksclan/swrgate/cache"
)

// DefaultRefreshTimeout bounds a background refresh.
const DefaultRefreshTimeout = 30 * time.Second

// Fetcher produces a fresh value for a key.
type Fetcher[T any] func(ctx context.Context) (T, error)

// Observer is notified of cache events. Implementations must be safe for
// concurrent use.
type Observer interface {
	OnHit(key string)
	OnMiss(key string)
	// OnRevalidate is called when a background refresh finishes; err is nil
	// on success.
	OnRevalidate(key string, err error)
}

type nopObserver struct{}

func (nopObserver) OnHit(string)               {}
func (nopObserver) OnMiss(string)              {}
func (nopObserver) OnRevalidate(string, error) {}

type options struct {
	ttl            time.Duration
	coalesce       bool
	refreshTimeout time.Duration
	logger         zerolog.Logger
	observer       Observer
}

// Option configures a [Cache].
type Option func(*options)

// WithTTL expires entries after d. Zero keeps entries until evicted.
func WithTTL(d time.Duration) Option {
	return func(o *options) { o.ttl = d }
}

// WithCoalescing makes concurrent misses and concurrent refreshes of the
// same key share a single fetch.
func WithCoalescing(enabled bool) Option {
	return func(o *options) { o.coalesce = enabled }
}

// WithRefreshTimeout bounds each background refresh. Non-positive values
// keep [DefaultRefreshTimeout].
func WithRefreshTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.refreshTimeout = d
		}
	}
}

// WithLogger sets the logger for refresh failures and store errors.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithObserver reports hits, misses and refresh results to obs.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observer = obs
		}
	}
}

// Cache is a stale-while-revalidate cache of T values keyed by string.
// Values are stored JSON-encoded. All methods are safe for concurrent use.
type Cache[T any] struct {
	store cache.Cache
	opts  options

	group   singleflight.Group
	pending conc.WaitGroup
}

// New creates a Cache over store.
func New[T any](store cache.Cache, opts ...Option) *Cache[T] {
	o := options{
		refreshTimeout: DefaultRefreshTimeout,
		logger:         zerolog.Nop(),
		observer:       nopObserver{},
	}
	for _, fn := range opts {
		fn(&o)
	}
	return &Cache[T]{store: store, opts: o}
}

// Get returns the value for key. On a hit the stored value is returned at
// once and fetch runs in the background to replace it. On a miss fetch runs
// synchronously; its error is returned and nothing is stored.
func (c *Cache[T]) Get(ctx context.Context, key string, fetch Fetcher[T]) (T, error) {
	if v, ok := c.lookup(ctx, key); ok {
		c.opts.observer.OnHit(key)
		c.revalidate(ctx, key, fetch)
		return v, nil
	}
	c.opts.observer.OnMiss(key)
	return c.load(ctx, key, fetch)
}

// Wait blocks until every background refresh started so far has finished.
// A panic raised by a refresh is logged instead of re-raised.
func (c *Cache[T]) Wait() {
	if r := c.pending.WaitAndRecover(); r != nil {
		c.opts.logger.Error().Str("panic", r.String()).Msg("SWR revalidation panicked")
	}
}

func (c *Cache[T]) lookup(ctx context.Context, key string) (T, bool) {
	var zero T
	raw, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.opts.logger.Warn().Err(err).Str("key", key).Msg("cache read failed, treating as miss")
		return zero, false
	}
	if !ok {
		return zero, false
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		c.opts.logger.Warn().Err(err).Str("key", key).Msg("undecodable cache entry, treating as miss")
		return zero, false
	}
	return v, true
}

func (c *Cache[T]) load(ctx context.Context, key string, fetch Fetcher[T]) (T, error) {
	if !c.opts.coalesce {
		return c.fetchAndStore(ctx, key, fetch)
	}
	// The shared fetch belongs to no single caller: it is detached from ctx
	// and bounded by the refresh timeout, and each caller stops waiting when
	// its own ctx is done.
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		fctx, cancel := context.WithTimeout(shared, c.opts.refreshTimeout)
		defer cancel()
		return c.fetchAndStore(fctx, key, fetch)
	})
	var zero T
	select {
	case <-ctx.Done():
		return zero, context.Cause(ctx)
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}

// revalidate refreshes key in the background. The refresh outlives the
// request that triggered it.
func (c *Cache[T]) revalidate(ctx context.Context, key string, fetch Fetcher[T]) {
	ctx = context.WithoutCancel(ctx)
	c.pending.Go(func() {
		ctx, cancel := context.WithTimeout(ctx, c.opts.refreshTimeout)
		defer cancel()

		_, err := c.load(ctx, key, fetch)
		c.opts.observer.OnRevalidate(key, err)
		if err != nil {
			c.opts.logger.Error().Err(err).Str("key", key).Msg("SWR revalidation failed")
		}
	})
}

func (c *Cache[T]) fetchAndStore(ctx context.Context, key string, fetch Fetcher[T]) (T, error) {
	v, err := fetch(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	raw, err := json.Marshal(v)
	if err != nil {
		c.opts.logger.Error().Err(err).Str("key", key).Msg("cannot encode value, not cached")
		return v, nil
	}
	if err := c.store.Set(ctx, key, raw, c.opts.ttl); err != nil {
		c.opts.logger.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
	return v, nil
}
