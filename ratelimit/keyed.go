package ratelimit

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultMaxKeys bounds the number of clients tracked by a [Keyed] limiter.
const DefaultMaxKeys = 10_000

// Keyed keeps one token bucket per key (typically a client IP). The table
// is an LRU; a client evicted from it starts over with a full bucket.
type Keyed struct {
	n      int
	window time.Duration

	mu      sync.Mutex
	buckets *lru.Cache[string, *Limiter]
}

// NewKeyed creates a limiter allowing n requests per window for each key,
// tracking at most maxKeys keys.
func NewKeyed(n int, window time.Duration, maxKeys int) (*Keyed, error) {
	if maxKeys <= 0 {
		maxKeys = DefaultMaxKeys
	}
	buckets, err := lru.New[string, *Limiter](maxKeys)
	if err != nil {
		return nil, err
	}
	return &Keyed{n: n, window: window, buckets: buckets}, nil
}

// Take consumes one token from key's bucket.
func (k *Keyed) Take(key string) Decision {
	return k.bucket(key).Take()
}

func (k *Keyed) bucket(key string) *Limiter {
	k.mu.Lock()
	defer k.mu.Unlock()
	if l, ok := k.buckets.Get(key); ok {
		return l
	}
	l := PerWindow(k.n, k.window)
	k.buckets.Add(key, l)
	return l
}

// Len returns the number of tracked keys.
func (k *Keyed) Len() int {
	return k.buckets.Len()
}
