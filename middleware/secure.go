package middleware

import (
	"net/http"

	"github.com/unrolled/secure"
)

// ContentSecurityPolicy is sent in production only.
const ContentSecurityPolicy = "default-src 'self'; style-src 'self' 'unsafe-inline'; script-src 'self'; img-src 'self' data: https:"

// SecureHeaders sets the standard hardening headers on every response.
// The Content-Security-Policy is only emitted when production is true.
func SecureHeaders(production bool) func(http.Handler) http.Handler {
	opts := secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
		ReferrerPolicy:     "no-referrer",
		IsDevelopment:      !production,
	}
	if production {
		opts.ContentSecurityPolicy = ContentSecurityPolicy
	}
	s := secure.New(opts)
	return func(next http.Handler) http.Handler {
		return s.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-DNS-Prefetch-Control", "off")
			next.ServeHTTP(w, r)
		}))
	}
}
