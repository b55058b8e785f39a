package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Keksclan/swrgate/breaker"
)

func TestMiddleware_LabelsByRoutePattern(t *testing.T) {
	m := New()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/user/{userId}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	for _, id := range []string{"1", "2", "3"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/user/"+id, nil))
	}
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, 3.0, testutil.ToFloat64(m.requests.WithLabelValues("GET", "/api/user/{userId}", "502")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("GET", "unmatched", "404")))
}

func TestCacheObserver(t *testing.T) {
	m := New()
	m.OnMiss("user:1")
	m.OnHit("user:1")
	m.OnHit("user:2")
	m.OnRevalidate("user:1", nil)
	m.OnRevalidate("user:2", errors.New("down"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheEvents.WithLabelValues("user", "miss")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.cacheEvents.WithLabelValues("user", "hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheEvents.WithLabelValues("user", "revalidated")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheEvents.WithLabelValues("user", "revalidate_failed")))
}

func TestUpstreamAndBreaker(t *testing.T) {
	m := New()
	m.ObserveAttempt("server_error", 10*time.Millisecond)
	m.ObserveAttempt("success", 5*time.Millisecond)
	m.BreakerStateChanged(breaker.Closed, breaker.Open)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.upstream.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.breakerState))
}

func TestHandler_ExposesSeries(t *testing.T) {
	m := New()
	m.OnMiss("user:1")

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	body, err := io.ReadAll(rr.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `swrgate_cache_events_total{event="miss",prefix="user"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
