package swrgate

import (
	"net/http"

	"github.com/Keksclan/swrgate/docs"
	"github.com/Keksclan/swrgate/health"
	"github.com/Keksclan/swrgate/metrics"
	"github.com/Keksclan/swrgate/middleware"
	"github.com/Keksclan/swrgate/policy"
	"github.com/Keksclan/swrgate/security"
	"github.com/Keksclan/swrgate/tracing"
	"github.com/rs/zerolog"
)

// Middleware priorities. Lower values run first (outermost), regardless of
// the order in which options are passed to [NewServer].
const (
	PriorityLogging     = 100
	PriorityRequestID   = 150
	PriorityRecovery    = 200
	PriorityTracing     = 250
	PriorityMetrics     = 300
	PrioritySecure      = 350
	PriorityIPBlock     = 400
	PriorityRateLimit   = 500
	PriorityTimeout     = 550
	PriorityCompression = 700
)

// DefaultMetricsPath is where metrics are served when no path is given.
const DefaultMetricsPath = "/metrics"

// Option configures a Server.
type Option func(*options)

// WithLogger attaches logger to every request, assigns request IDs and
// writes an access log line per request.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *options) {
		c.logger = logger
		c.middlewares.Add(PriorityLogging, "logging", middleware.Logger(logger))
		c.middlewares.Add(PriorityRequestID, "request_id", middleware.RequestID())
	}
}

// WithRecovery turns panics in handlers into 500 INTERNAL_ERROR responses.
// The logger is read when the server is built, so WithLogger may come later.
func WithRecovery() Option {
	return func(c *options) {
		c.middlewares.Add(PriorityRecovery, "recovery", func(next http.Handler) http.Handler {
			return middleware.Recovery(c.logger)(next)
		})
	}
}

// WithTracing starts a server span per request.
func WithTracing(cfg *tracing.Config) Option {
	return func(c *options) {
		c.middlewares.Add(PriorityTracing, "tracing", tracing.Middleware(cfg))
	}
}

// WithMetrics records request metrics with m and serves them at path. An
// empty path selects [DefaultMetricsPath].
func WithMetrics(m *metrics.Metrics, path string) Option {
	return func(c *options) {
		if path == "" {
			path = DefaultMetricsPath
		}
		c.metrics = m
		c.metricsPath = path
		c.middlewares.Add(PriorityMetrics, "metrics", m.Middleware)
	}
}

// WithSecureHeaders adds the standard security headers. production enables
// the Content-Security-Policy.
func WithSecureHeaders(production bool) Option {
	return func(c *options) {
		c.middlewares.Add(PrioritySecure, "secure", middleware.SecureHeaders(production))
	}
}

// WithIPBlock rejects requests b does not allow with 403 FORBIDDEN.
func WithIPBlock(b *security.IPBlocker) Option {
	return func(c *options) {
		c.middlewares.Add(PriorityIPBlock, "ip_block", middleware.IPBlock(b))
	}
}

// WithRateLimit limits requests per client.
func WithRateLimit(cfg middleware.RateLimitConfig) Option {
	return func(c *options) {
		c.middlewares.Add(PriorityRateLimit, "rate_limit", middleware.RateLimit(cfg))
	}
}

// WithPolicyTimeouts bounds request contexts by the timeouts of the groups
// res resolves.
func WithPolicyTimeouts(res *policy.Resolver) Option {
	return func(c *options) {
		c.middlewares.Add(PriorityTimeout, "timeout", middleware.Timeout(res))
	}
}

// WithCompression gzips responses of at least minSize bytes. A
// non-positive minSize selects the default of 1 KiB.
func WithCompression(minSize int) Option {
	return func(c *options) {
		mw, err := middleware.Compress(minSize)
		if err != nil {
			c.err = err
			return
		}
		c.middlewares.Add(PriorityCompression, "compression", mw)
	}
}

// WithHealth serves s at /health. Without it a fresh [health.Status] is
// used.
func WithHealth(s *health.Status) Option {
	return func(c *options) { c.health = s }
}

// WithDocs serves the landing page at / and the API reference under /docs.
func WithDocs(d *docs.Handler) Option {
	return func(c *options) { c.docs = d }
}

// WithAPI mounts h under /api.
func WithAPI(h http.Handler) Option {
	return func(c *options) { c.api = h }
}
