package middleware

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Keksclan/swrgate/contextx"
)

// RequestIDHeader carries the request identifier in both directions.
const RequestIDHeader = contextx.RequestIDHeader

// maxRequestIDLen bounds client-supplied identifiers.
const maxRequestIDLen = 128

// RequestID ensures every request has an identifier. An incoming
// X-Request-Id is reused when it is short enough; otherwise a random UUID is
// generated. The ID is stored with contextx, echoed on the response and
// added to the request logger as request_id.
func RequestID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(RequestIDHeader)
			if id == "" || len(id) > maxRequestIDLen {
				id = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, id)

			ctx := contextx.WithRequestID(r.Context(), id)
			zerolog.Ctx(ctx).UpdateContext(func(c zerolog.Context) zerolog.Context {
				return c.Str("request_id", id)
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
