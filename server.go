// Package swrgate assembles the user gateway: an HTTP server that serves
// users with their posts from a JSONPlaceholder-style upstream through a
// stale-while-revalidate cache, behind recovery, logging, security,
// rate-limiting and compression middleware.
//
// A fully wired server is built from configuration with [FromConfig]:
//
//	cfg, _ := config.Load("swrgate.yaml")
//	srv, err := swrgate.FromConfig(ctx, cfg, logger)
//	defer srv.Close(ctx)
//	http.ListenAndServe(cfg.Server.Addr(), srv.Handler())
//
// [NewServer] composes the same pieces from functional options.
package swrgate

import (
	"context"
	"errors"
	"net/http"

	"github.com/Keksclan/swrgate/apierror"
	"github.com/Keksclan/swrgate/health"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Server is the gateway HTTP handler together with its health state and
// the resources that must be released on shutdown.
type Server struct {
	handler     http.Handler
	health      *health.Status
	metrics     http.Handler
	middlewares []string
	closers     []func(context.Context) error
}

// NewServer creates a [Server] by applying the supplied functional [Option]
// values. Middleware execution order is determined by fixed priority levels
// (see the Priority constants), not by the order options are passed.
//
// Example:
//
//	srv, err := swrgate.NewServer(
//		swrgate.WithLogger(logger),
//		swrgate.WithRecovery(),
//		swrgate.WithRateLimit(middleware.RateLimitConfig{Global: limiter}),
//		swrgate.WithAPI(gw.Routes()),
//	)
func NewServer(opts ...Option) (*Server, error) {
	cfg := options{logger: zerolog.Nop()}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.err != nil {
		return nil, cfg.err
	}
	if cfg.health == nil {
		cfg.health = health.New()
	}

	r := chi.NewRouter()
	r.Use(cfg.middlewares.Build()...)
	r.NotFound(apierror.NotFound)
	r.MethodNotAllowed(apierror.NotFound)

	r.Method(http.MethodGet, "/health", cfg.health)
	s := &Server{handler: r, health: cfg.health, middlewares: cfg.middlewares.Names()}
	if cfg.metrics != nil {
		s.metrics = cfg.metrics.Handler()
		r.Method(http.MethodGet, cfg.metricsPath, s.metrics)
	}
	if cfg.api != nil {
		r.Mount("/api", cfg.api)
	}
	if cfg.docs != nil {
		r.Get("/", cfg.docs.Home)
		r.Mount("/docs", cfg.docs.Routes())
	}
	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Health returns the health state served at /health.
func (s *Server) Health() *health.Status {
	return s.health
}

// MetricsHandler returns an http.Handler that serves Prometheus metrics.
// Without WithMetrics it serves the default registry.
func (s *Server) MetricsHandler() http.Handler {
	if s.metrics == nil {
		return promhttp.Handler()
	}
	return s.metrics
}

// Middlewares returns the installed middleware names in execution order.
func (s *Server) Middlewares() []string {
	return s.middlewares
}

// Close releases everything registered by [FromConfig] in reverse order of
// acquisition. It waits for background cache refreshes until ctx is done.
func (s *Server) Close(ctx context.Context) error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

