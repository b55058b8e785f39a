package middleware

import (
	"net/http"

	"github.com/Keksclan/swrgate/apierror"
	"github.com/Keksclan/swrgate/security"
)

var errBlocked = apierror.New(apierror.CodeForbidden, "Forbidden")

// IPBlock denies requests for which b.Evaluate returns false with 403
// FORBIDDEN.
func IPBlock(b *security.IPBlocker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !b.Evaluate(r) {
				apierror.Write(w, errBlocked)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
