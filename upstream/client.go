// Package upstream fetches JSON documents from the user/posts API with a
// per-attempt timeout, retry classification and an optional circuit breaker.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/Keksclan/swrgate/breaker"
	"github.com/Keksclan/swrgate/contextx"
	"github.com/Keksclan/swrgate/retry"
	"github.com/Keksclan/swrgate/tracing"
)

// DefaultTimeout bounds a single attempt.
const DefaultTimeout = 5 * time.Second

// Observer receives one call per finished attempt.
type Observer interface {
	ObserveAttempt(outcome string, elapsed time.Duration)
}

// Client performs GET requests that decode a JSON body.
type Client struct {
	http     *http.Client
	timeout  time.Duration
	retry    retry.Config
	breaker  *breaker.Breaker
	tracing  *tracing.Config
	observer Observer
	logger   zerolog.Logger
}

// Option configures a [Client].
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-attempt timeout. Non-positive values keep the
// default.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRetry sets the retry policy used by [Client.FetchWithRetry]. The
// classifier is always [IsRetryable].
func WithRetry(cfg retry.Config) Option {
	return func(c *Client) { c.retry = cfg }
}

// WithBreaker guards every attempt with b.
func WithBreaker(b *breaker.Breaker) Option {
	return func(c *Client) { c.breaker = b }
}

// WithTracing enables client spans.
func WithTracing(cfg *tracing.Config) Option {
	return func(c *Client) { c.tracing = cfg }
}

// WithObserver reports attempt outcomes to o.
func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// WithLogger sets the logger used for retry warnings.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a Client. Without options it makes up to 3 attempts
// 500ms apart, each bounded by [DefaultTimeout].
func NewClient(opts ...Option) *Client {
	c := &Client{
		http:    &http.Client{},
		timeout: DefaultTimeout,
		retry:   retry.Config{MaxAttempts: 3, Delay: 500 * time.Millisecond},
		logger:  zerolog.Nop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// GetJSON performs a single attempt: GET url within the per-attempt timeout,
// require a 2xx status and decode the body as JSON.
func (c *Client) GetJSON(ctx context.Context, url string) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("upstream: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if id := contextx.RequestIDFromContext(ctx); id != "" {
		req.Header.Set(contextx.RequestIDHeader, id)
	}
	req, span := tracing.StartClient(ctx, c.tracing, req)

	resp, err := c.http.Do(req)
	if err != nil {
		tracing.EndClient(span, 0, err)
		return nil, fmt.Errorf("upstream: GET %s: %w", url, err)
	}
	defer resp.Body.Close()
	tracing.EndClient(span, resp.StatusCode, nil)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &HTTPError{StatusCode: resp.StatusCode, URL: url}
	}

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("upstream: decode %s: %w", url, err)
	}
	return raw, nil
}

// FetchWithRetry calls [Client.GetJSON] until it succeeds, the error is not
// retryable, or the attempt ceiling is reached. Timed-out attempts count
// towards the ceiling. The last attempt's error is returned unchanged.
func (c *Client) FetchWithRetry(ctx context.Context, url string) (json.RawMessage, error) {
	cfg := c.retry
	cfg.Retryable = IsRetryable
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		c.logger.Warn().Err(err).
			Str("url", url).
			Int("attempt", attempt).
			Dur("delay", delay).
			Msg("upstream attempt failed, retrying")
	}
	return retry.Do(ctx, cfg, func(ctx context.Context) (json.RawMessage, error) {
		start := time.Now()
		raw, err := c.attempt(ctx, url)
		if c.observer != nil {
			c.observer.ObserveAttempt(Outcome(err), time.Since(start))
		}
		return raw, err
	})
}

func (c *Client) attempt(ctx context.Context, url string) (json.RawMessage, error) {
	if c.breaker == nil {
		return c.GetJSON(ctx, url)
	}
	var raw json.RawMessage
	err := c.breaker.Do(func() error {
		var err error
		raw, err = c.GetJSON(ctx, url)
		return err
	})
	return raw, err
}
