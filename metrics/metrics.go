// Package metrics exposes Prometheus collectors for the gateway: HTTP
// traffic, SWR cache events, upstream attempts and circuit breaker state.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Keksclan/swrgate/breaker"
)

const namespace = "swrgate"

// Metrics owns a registry and the gateway collectors.
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	cacheEvents     *prometheus.CounterVec
	upstream        *prometheus.CounterVec
	upstreamLatency prometheus.Histogram
	breakerState    prometheus.Gauge
}

// New creates Metrics with its own registry, including the Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		cacheEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_events_total",
			Help:      "SWR cache events by key prefix and event (hit, miss, revalidated, revalidate_failed).",
		}, []string{"prefix", "event"}),
		upstream: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_attempts_total",
			Help:      "Upstream fetch attempts by outcome.",
		}, []string{"outcome"}),
		upstreamLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_attempt_duration_seconds",
			Help:      "Latency of single upstream attempts.",
			Buckets:   prometheus.DefBuckets,
		}),
		breakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "upstream_breaker_state",
			Help:      "Upstream circuit breaker state (0 closed, 1 open, 2 half-open).",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.requestDuration,
		m.cacheEvents,
		m.upstream,
		m.upstreamLatency,
		m.breakerState,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records request counts and latency labelled by chi route
// pattern, so ids in the path do not create new series.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.requestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// OnHit implements swr.Observer.
func (m *Metrics) OnHit(key string) { m.cacheEvent(key, "hit") }

// OnMiss implements swr.Observer.
func (m *Metrics) OnMiss(key string) { m.cacheEvent(key, "miss") }

// OnRevalidate implements swr.Observer.
func (m *Metrics) OnRevalidate(key string, err error) {
	if err != nil {
		m.cacheEvent(key, "revalidate_failed")
		return
	}
	m.cacheEvent(key, "revalidated")
}

func (m *Metrics) cacheEvent(key, event string) {
	prefix, _, _ := strings.Cut(key, ":")
	m.cacheEvents.WithLabelValues(prefix, event).Inc()
}

// ObserveAttempt implements upstream.Observer.
func (m *Metrics) ObserveAttempt(outcome string, elapsed time.Duration) {
	m.upstream.WithLabelValues(outcome).Inc()
	m.upstreamLatency.Observe(elapsed.Seconds())
}

// BreakerStateChanged can be used as breaker.Config.OnStateChange.
func (m *Metrics) BreakerStateChanged(_, to breaker.State) {
	m.breakerState.Set(float64(to))
}
