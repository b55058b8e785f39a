// Package ratelimit provides token-bucket limiters backed by
// golang.org/x/time/rate: a single shared bucket and a bounded table of
// per-client buckets.
package ratelimit

import (
	"math"
	"time"

	"golang.org/x/time/rate"
)

// Decision describes the outcome of taking one token.
type Decision struct {
	Allowed bool
	// Limit is the bucket size (requests per window).
	Limit int
	// Remaining is the number of whole tokens left after this request.
	Remaining int
	// RetryAfter is how long until a token is available when the request
	// was rejected.
	RetryAfter time.Duration
}

// Limiter wraps a token-bucket limiter that decides whether an incoming
// request should be allowed.
type Limiter struct {
	lim   *rate.Limiter
	burst int
}

// NewLimiter creates a Limiter that permits rps requests per second with the
// given burst size.
func NewLimiter(rps float64, burst int) *Limiter {
	return &Limiter{lim: rate.NewLimiter(rate.Limit(rps), burst), burst: burst}
}

// PerWindow creates a Limiter allowing n requests per window, refilling
// continuously.
func PerWindow(n int, window time.Duration) *Limiter {
	return NewLimiter(float64(n)/window.Seconds(), n)
}

// Allow reports whether a single request may proceed.
func (l *Limiter) Allow() bool {
	return l.lim.Allow()
}

// Take consumes one token if available and reports the bucket state.
func (l *Limiter) Take() Decision {
	return l.takeAt(time.Now())
}

func (l *Limiter) takeAt(now time.Time) Decision {
	d := Decision{Limit: l.burst}
	res := l.lim.ReserveN(now, 1)
	if !res.OK() {
		return d
	}
	if wait := res.DelayFrom(now); wait > 0 {
		res.CancelAt(now)
		d.RetryAfter = wait
		return d
	}
	d.Allowed = true
	d.Remaining = max(int(math.Floor(l.lim.TokensAt(now))), 0)
	return d
}
