package middleware

import (
	"net/http"
)

// BodyLimit caps request body size via http.MaxBytesReader. Reads past the
// limit fail and the connection is closed. Apply before any handler that
// consumes the body.
func BodyLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
