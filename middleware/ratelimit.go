package middleware

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/Keksclan/swrgate/apierror"
	"github.com/Keksclan/swrgate/policy"
	"github.com/Keksclan/swrgate/ratelimit"
	"github.com/Keksclan/swrgate/security"
)

// Rate limit response headers.
const (
	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRetryAfter         = "Retry-After"
)

// RateLimitConfig configures [RateLimit].
type RateLimitConfig struct {
	// Global is the per-client limiter applied to paths without a group
	// override. A nil Global leaves those paths unlimited.
	Global *ratelimit.Keyed
	// Resolver maps paths to groups that may override or exempt the limit.
	Resolver *policy.Resolver
	// ClientIP derives the bucket key. Nil uses the connection peer only.
	ClientIP *security.ClientIPResolver
	// MaxKeys bounds each per-group client table.
	MaxKeys int
}

// rateLimitState holds the global limiter, an optional policy resolver, and a
// cache of per-group limiters created lazily from resolved policies.
type rateLimitState struct {
	cfg RateLimitConfig

	mu     sync.Mutex
	groups map[string]*ratelimit.Keyed
}

// limiterFor returns the per-group limiter when the resolver matches path to
// a group with a RateLimit policy, nil for exempt groups, and the global
// limiter otherwise.
func (s *rateLimitState) limiterFor(path string) *ratelimit.Keyed {
	name, pol, ok := s.cfg.Resolver.Resolve(path)
	if !ok || pol == nil {
		return s.cfg.Global
	}
	if pol.Exempt {
		return nil
	}
	if pol.RateLimit == nil {
		return s.cfg.Global
	}
	return s.groupLimiter(name, pol.RateLimit)
}

func (s *rateLimitState) groupLimiter(name string, rl *policy.RateLimitRule) *ratelimit.Keyed {
	s.mu.Lock()
	defer s.mu.Unlock()

	if l, ok := s.groups[name]; ok {
		return l
	}
	l, err := ratelimit.NewKeyed(rl.Rate, rl.Window, s.cfg.MaxKeys)
	if err != nil {
		return s.cfg.Global
	}
	s.groups[name] = l
	return l
}

func (s *rateLimitState) clientKey(r *http.Request) string {
	if s.cfg.ClientIP == nil {
		return r.RemoteAddr
	}
	return s.cfg.ClientIP.Key(r)
}

// RateLimit rejects requests from clients that exhausted their token bucket
// with 429 RATE_LIMITED. Allowed responses carry X-RateLimit-Limit and
// X-RateLimit-Remaining; rejections also carry Retry-After in seconds.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	st := &rateLimitState{cfg: cfg, groups: make(map[string]*ratelimit.Keyed)}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			l := st.limiterFor(r.URL.Path)
			if l == nil {
				next.ServeHTTP(w, r)
				return
			}

			d := l.Take(st.clientKey(r))
			h := w.Header()
			h.Set(HeaderRateLimitLimit, strconv.Itoa(d.Limit))
			h.Set(HeaderRateLimitRemaining, strconv.Itoa(d.Remaining))
			if !d.Allowed {
				secs := retryAfterSeconds(d.RetryAfter)
				h.Set(HeaderRetryAfter, strconv.Itoa(secs))
				apierror.Write(w, apierror.New(apierror.CodeRateLimited,
					fmt.Sprintf("Rate limit exceeded, retry in %s", humanSeconds(secs))))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// retryAfterSeconds rounds d up to whole seconds, minimum one.
func retryAfterSeconds(d time.Duration) int {
	return max(int(math.Ceil(d.Seconds())), 1)
}

func humanSeconds(n int) string {
	if n == 1 {
		return "1 second"
	}
	return strconv.Itoa(n) + " seconds"
}
