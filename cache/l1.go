package cache

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// DefaultMaxEntries bounds the L1 store when no size is configured.
const DefaultMaxEntries = 10_000

// L1 is an in-process cache backed by ristretto. Every entry costs 1, so
// the store holds at most maxEntries values and evicts by TinyLFU.
type L1 struct {
	rc *ristretto.Cache[string, []byte]
}

// NewL1 creates a new L1 cache holding at most maxEntries values.
func NewL1(maxEntries int64) (*L1, error) {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	rc, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters:        maxEntries * 10,
		MaxCost:            maxEntries,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, err
	}
	return &L1{rc: rc}, nil
}

// Get retrieves a value by key.
func (l *L1) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := l.rc.Get(key)
	if !ok {
		return nil, false, nil
	}
	return bytes.Clone(v), true, nil
}

// Set stores a value under key with the given TTL. The write is visible to
// Get once Set returns, unless the admission policy rejected it.
func (l *L1) Set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	if !l.rc.SetWithTTL(key, bytes.Clone(val), 1, ttl) {
		return errors.New("cache: l1 rejected write for " + key)
	}
	l.rc.Wait()
	return nil
}

// Close stops ristretto's background goroutines.
func (l *L1) Close() error {
	l.rc.Close()
	return nil
}
