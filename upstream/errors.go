package upstream

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/Keksclan/swrgate/breaker"
)

// HTTPError reports a non-2xx response from the upstream.
type HTTPError struct {
	StatusCode int
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("upstream: GET %s: status %d", e.URL, e.StatusCode)
}

// IsRetryable reports whether another attempt could succeed. Client errors
// (4xx), an open circuit and caller cancellation are final; network errors,
// timeouts, decode failures and server errors are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var he *HTTPError
	if errors.As(err, &he) {
		return he.StatusCode < http.StatusBadRequest || he.StatusCode >= http.StatusInternalServerError
	}
	if errors.Is(err, breaker.ErrOpen) || errors.Is(err, context.Canceled) {
		return false
	}
	return true
}

// Outcome buckets an attempt result for metrics labels.
func Outcome(err error) string {
	if err == nil {
		return "success"
	}
	var he *HTTPError
	switch {
	case errors.As(err, &he) && he.StatusCode >= http.StatusInternalServerError:
		return "server_error"
	case errors.As(err, &he):
		return "client_error"
	case errors.Is(err, breaker.ErrOpen):
		return "circuit_open"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	}
	return "error"
}
