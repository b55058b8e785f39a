// Package middleware provides the HTTP middleware stacked in front of the
// gateway routes. Every constructor returns a func(http.Handler)
// http.Handler so the pieces compose with chi and with each other.
//
// Rejections (blocked address, exhausted rate limit, recovered panic) are
// written with the apierror JSON envelope.
package middleware
