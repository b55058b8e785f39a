// Package contextx holds request-scoped values shared between the HTTP
// middleware and the upstream client.
package contextx

// contextKey is an unexported type used as context key to avoid collisions
// with keys defined in other packages.
type contextKey int

const (
	requestIDKey contextKey = iota
)
