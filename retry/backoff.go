// Package retry provides a generic retry helper with a fixed or exponential
// delay between attempts and an error classifier that can short-circuit
// failures which would fail the same way again.
package retry

import (
	"math"
	"math/rand"
	"time"
)

// Strategy selects how the delay between attempts grows.
type Strategy int

const (
	// Fixed waits Delay between every pair of attempts.
	Fixed Strategy = iota
	// Exponential waits Delay * 2^attempt, capped at MaxDelay.
	Exponential
)

// ParseStrategy maps a configuration value to a [Strategy].
func ParseStrategy(s string) (Strategy, bool) {
	switch s {
	case "", "fixed":
		return Fixed, true
	case "exponential":
		return Exponential, true
	}
	return Fixed, false
}

func (s Strategy) String() string {
	if s == Exponential {
		return "exponential"
	}
	return "fixed"
}

// backoff returns the delay after the given attempt (0-indexed).
func backoff(cfg Config, attempt int) time.Duration {
	delay := float64(cfg.Delay)
	if cfg.Strategy == Exponential {
		delay *= math.Pow(2, float64(attempt))
		if max := float64(cfg.MaxDelay); max > 0 && delay > max {
			delay = max
		}
	}
	if cfg.Jitter > 0 {
		// jitter adds up to ±Jitter fraction of the delay.
		delay += delay * cfg.Jitter * (rand.Float64()*2 - 1)
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}
