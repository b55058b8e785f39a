package middleware

import (
	"context"
	"net/http"

	"github.com/Keksclan/swrgate/policy"
)

// Timeout bounds the request context by the Timeout of the policy group
// matching the request path. Paths without a group, or groups without a
// timeout, are left alone.
func Timeout(resolver *policy.Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, pol, ok := resolver.Resolve(r.URL.Path)
			if !ok || pol == nil || pol.Timeout <= 0 {
				next.ServeHTTP(w, r)
				return
			}
			ctx, cancel := context.WithTimeout(r.Context(), pol.Timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
