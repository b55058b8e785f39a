package middleware

import (
	"errors"
	"net/http"
	"runtime/debug"

	"github.com/Keksclan/swrgate/apierror"
	"github.com/rs/zerolog"
)

var errPanic = apierror.New(apierror.CodeInternal, "Internal server error")

// Recovery recovers from panics in next and answers 500 INTERNAL_ERROR
// instead of dropping the connection. http.ErrAbortHandler is re-raised so
// net/http can abort the response as intended.
func Recovery(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}
				l := zerolog.Ctx(r.Context())
				if l.GetLevel() == zerolog.Disabled {
					l = &logger
				}
				l.Error().
					Interface("panic", rec).
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Bytes("stack", debug.Stack()).
					Msg("http handler panicked")
				apierror.Write(w, errPanic)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
