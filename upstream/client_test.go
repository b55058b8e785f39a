package upstream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Keksclan/swrgate/breaker"
	"github.com/Keksclan/swrgate/contextx"
	"github.com/Keksclan/swrgate/retry"
)

func fastRetry(attempts int) Option {
	return WithRetry(retry.Config{MaxAttempts: attempts, Delay: time.Millisecond})
}

// flakyServer fails the first `failures` requests with status, then serves body.
func flakyServer(t *testing.T, failures int32, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) <= failures {
			w.WriteHeader(status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestGetJSON_DecodesBody(t *testing.T) {
	srv, _ := flakyServer(t, 0, 0, `{"id":1}`)
	c := NewClient()

	raw, err := c.GetJSON(t.Context(), srv.URL)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":1}`, string(raw))
}

func TestFetchWithRetry_SucceedsFirstTry(t *testing.T) {
	srv, calls := flakyServer(t, 0, 0, `[]`)
	c := NewClient(fastRetry(3))

	_, err := c.FetchWithRetry(t.Context(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchWithRetry_RetriesServerErrors(t *testing.T) {
	srv, calls := flakyServer(t, 2, http.StatusServiceUnavailable, `{"ok":true}`)
	c := NewClient(fastRetry(3))

	raw, err := c.FetchWithRetry(t.Context(), srv.URL)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(raw))
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchWithRetry_ExhaustsAttempts(t *testing.T) {
	srv, calls := flakyServer(t, 100, http.StatusInternalServerError, ``)
	c := NewClient(fastRetry(2))

	_, err := c.FetchWithRetry(t.Context(), srv.URL)
	var he *HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusInternalServerError, he.StatusCode)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetchWithRetry_ClientErrorIsFinal(t *testing.T) {
	srv, calls := flakyServer(t, 100, http.StatusNotFound, ``)
	c := NewClient(fastRetry(5))

	_, err := c.FetchWithRetry(t.Context(), srv.URL)
	var he *HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusNotFound, he.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchWithRetry_InvalidJSONIsRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			_, _ = fmt.Fprint(w, `{not json`)
			return
		}
		_, _ = fmt.Fprint(w, `{"id":2}`)
	}))
	t.Cleanup(srv.Close)

	raw, err := NewClient(fastRetry(3)).FetchWithRetry(t.Context(), srv.URL)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":2}`, string(raw))
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetchWithRetry_TimeoutCountsAsAttempt(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	c := NewClient(fastRetry(2), WithTimeout(20*time.Millisecond))
	_, err := c.FetchWithRetry(t.Context(), srv.URL)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetchWithRetry_OpenBreakerFailsFast(t *testing.T) {
	srv, calls := flakyServer(t, 100, http.StatusBadGateway, ``)
	b := breaker.New(breaker.Config{FailureThreshold: 1, OpenTimeout: time.Minute, IsFailure: IsRetryable})
	c := NewClient(fastRetry(3), WithBreaker(b))

	_, err := c.FetchWithRetry(t.Context(), srv.URL)
	require.ErrorIs(t, err, breaker.ErrOpen)
	// The first attempt trips the breaker; the second is rejected locally
	// and is not retried.
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, breaker.Open, b.State())
}

type countingObserver struct {
	mu       sync.Mutex
	outcomes []string
}

func (o *countingObserver) ObserveAttempt(outcome string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
}

func TestFetchWithRetry_ReportsAttempts(t *testing.T) {
	srv, _ := flakyServer(t, 1, http.StatusInternalServerError, `{}`)
	obs := &countingObserver{}
	c := NewClient(fastRetry(3), WithObserver(obs))

	_, err := c.FetchWithRetry(t.Context(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, []string{"server_error", "success"}, obs.outcomes)
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"400", &HTTPError{StatusCode: 400}, false},
		{"404", &HTTPError{StatusCode: 404}, false},
		{"429", &HTTPError{StatusCode: 429}, false},
		{"500", &HTTPError{StatusCode: 500}, true},
		{"503 wrapped", fmt.Errorf("x: %w", &HTTPError{StatusCode: 503}), true},
		{"timeout", fmt.Errorf("x: %w", context.DeadlineExceeded), true},
		{"canceled", context.Canceled, false},
		{"breaker", breaker.ErrOpen, false},
		{"network", errors.New("connection refused"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestGetJSON_ForwardsRequestID(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get(contextx.RequestIDHeader)
		_, _ = fmt.Fprint(w, `{}`)
	}))
	t.Cleanup(srv.Close)

	ctx := contextx.WithRequestID(t.Context(), "req-42")
	_, err := NewClient().GetJSON(ctx, srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "req-42", got)
}
