package swrgate

import (
	"context"
	"fmt"
	"os"

	"github.com/Keksclan/swrgate/breaker"
	"github.com/Keksclan/swrgate/cache"
	"github.com/Keksclan/swrgate/config"
	"github.com/Keksclan/swrgate/docs"
	"github.com/Keksclan/swrgate/gateway"
	"github.com/Keksclan/swrgate/health"
	"github.com/Keksclan/swrgate/metrics"
	"github.com/Keksclan/swrgate/middleware"
	"github.com/Keksclan/swrgate/policy"
	"github.com/Keksclan/swrgate/ratelimit"
	"github.com/Keksclan/swrgate/retry"
	"github.com/Keksclan/swrgate/schema"
	"github.com/Keksclan/swrgate/security"
	"github.com/Keksclan/swrgate/swr"
	"github.com/Keksclan/swrgate/tracing"
	"github.com/Keksclan/swrgate/upstream"
	"github.com/rs/zerolog"
)

// FromConfig builds the complete gateway described by cfg: cache store,
// upstream client, SWR cache, API routes and the middleware stack. The
// returned server must be closed to flush pending refreshes and release the
// store.
func FromConfig(ctx context.Context, cfg config.Config, logger zerolog.Logger) (srv *Server, err error) {
	var closers []func(context.Context) error
	defer func() {
		if err != nil {
			_ = (&Server{closers: closers}).Close(ctx)
		}
	}()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	var tcfg *tracing.Config
	if cfg.Tracing.Enabled {
		tp, err := tracing.NewProvider(cfg.Tracing.Exporter, os.Stdout)
		if err != nil {
			return nil, err
		}
		closers = append(closers, func(ctx context.Context) error { return tracing.Shutdown(ctx, tp) })
		tcfg = &tracing.Config{TracerProvider: tp}
	}

	store, err := cache.Open(ctx, cache.Options{
		Backend:    cfg.Cache.Backend,
		MaxEntries: cfg.Cache.MaxEntries,
		Redis: cache.RedisOptions{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
			Prefix:   cfg.Cache.Redis.Prefix,
		},
		SQLitePath: cfg.Cache.SQLite.Path,
		Logger:     logger.With().Str("component", "cache").Logger(),
	})
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	closers = append(closers, func(context.Context) error { return store.Close() })

	users := upstream.NewUsers(newUpstreamClient(cfg.Upstream, m, tcfg, logger), cfg.Upstream.BaseURL)

	validator, err := schema.NewUserWithPosts()
	if err != nil {
		return nil, err
	}

	swrOpts := []swr.Option{
		swr.WithTTL(cfg.Cache.TTL),
		swr.WithCoalescing(cfg.Cache.Coalesce),
		swr.WithRefreshTimeout(cfg.Cache.RefreshTimeout),
		swr.WithLogger(logger.With().Str("component", "swr").Logger()),
	}
	if m != nil {
		swrOpts = append(swrOpts, swr.WithObserver(m))
	}
	results := swr.New[gateway.Result](store, swrOpts...)
	closers = append(closers, func(ctx context.Context) error { return waitRefreshes(ctx, results) })

	opts := []Option{
		WithLogger(logger),
		WithRecovery(),
		WithSecureHeaders(cfg.Server.Production()),
		WithHealth(health.New()),
		WithAPI(gateway.NewHandler(results, users, validator).Routes()),
	}
	if m != nil {
		opts = append(opts, WithMetrics(m, cfg.Metrics.Path))
	}
	if cfg.Server.Docs {
		d, err := docs.New()
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithDocs(d))
	}
	if tcfg != nil {
		opts = append(opts, WithTracing(tcfg))
	}

	clientIP, err := security.NewClientIPResolver(cfg.Security.TrustedProxies, nil)
	if err != nil {
		return nil, err
	}
	if len(cfg.Security.IPBlock.CIDRs) > 0 {
		mode, err := security.ParseMode(cfg.Security.IPBlock.Mode)
		if err != nil {
			return nil, err
		}
		blocker, err := security.NewIPBlocker(security.Config{
			Mode:           mode,
			CIDRs:          cfg.Security.IPBlock.CIDRs,
			TrustedProxies: cfg.Security.TrustedProxies,
		})
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithIPBlock(blocker))
	}

	resolver := policyResolver(cfg.RateLimit.Routes)
	if cfg.RateLimit.Enabled {
		global, err := ratelimit.NewKeyed(cfg.RateLimit.Max, cfg.RateLimit.Window, cfg.RateLimit.MaxClients)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithRateLimit(middleware.RateLimitConfig{
			Global:   global,
			Resolver: resolver,
			ClientIP: clientIP,
			MaxKeys:  cfg.RateLimit.MaxClients,
		}))
	}
	if resolver != nil {
		opts = append(opts, WithPolicyTimeouts(resolver))
	}
	if cfg.Compression.Enabled {
		opts = append(opts, WithCompression(cfg.Compression.MinSize))
	}

	srv, err = NewServer(opts...)
	if err != nil {
		return nil, err
	}
	srv.closers = closers
	return srv, nil
}

func newUpstreamClient(cfg config.UpstreamConfig, m *metrics.Metrics, tcfg *tracing.Config, logger zerolog.Logger) *upstream.Client {
	strategy, _ := retry.ParseStrategy(cfg.Backoff)
	logger = logger.With().Str("component", "upstream").Logger()
	opts := []upstream.Option{
		upstream.WithTimeout(cfg.Timeout),
		upstream.WithRetry(retry.Config{
			MaxAttempts: cfg.MaxAttempts,
			Delay:       cfg.RetryDelay,
			Strategy:    strategy,
			MaxDelay:    cfg.MaxDelay,
			Jitter:      cfg.Jitter,
		}),
		upstream.WithLogger(logger),
	}
	if m != nil {
		opts = append(opts, upstream.WithObserver(m))
	}
	if tcfg != nil {
		opts = append(opts, upstream.WithTracing(tcfg))
	}
	if cfg.Breaker.Enabled {
		opts = append(opts, upstream.WithBreaker(breaker.New(breaker.Config{
			FailureThreshold:   cfg.Breaker.FailureThreshold,
			OpenTimeout:        cfg.Breaker.OpenTimeout,
			HalfOpenMaxSuccess: cfg.Breaker.HalfOpenMaxSuccess,
			IsFailure:          upstream.IsRetryable,
			OnStateChange: func(from, to breaker.State) {
				logger.Warn().Stringer("from", from).Stringer("to", to).Msg("upstream circuit breaker state changed")
				if m != nil {
					m.BreakerStateChanged(from, to)
				}
			},
		})))
	}
	return upstream.NewClient(opts...)
}

// policyResolver turns configured route groups into a resolver. It returns
// nil when no groups are configured.
func policyResolver(routes []config.RouteConfig) *policy.Resolver {
	if len(routes) == 0 {
		return nil
	}
	groups := make([]*policy.GroupBuilder, 0, len(routes))
	for _, rc := range routes {
		g := policy.Group(rc.Name)
		for _, p := range rc.Exact {
			g.Exact(p)
		}
		for _, p := range rc.Prefix {
			g.Prefix(p)
		}
		for _, p := range rc.Regex {
			g.Regex(p)
		}
		pol := policy.Policy{Exempt: rc.Exempt, Timeout: rc.Timeout}
		if rc.Max > 0 {
			pol.RateLimit = &policy.RateLimitRule{Rate: rc.Max, Window: rc.Window}
		}
		groups = append(groups, g.Policy(pol))
	}
	return policy.NewResolver(groups...)
}

// waitRefreshes waits for background revalidations of c until ctx is done.
func waitRefreshes(ctx context.Context, c *swr.Cache[gateway.Result]) error {
	done := make(chan struct{})
	go func() {
		c.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for cache refreshes: %w", ctx.Err())
	}
}
