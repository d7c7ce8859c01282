package middleware

import (
	"context"
	"net/http"
	"time"
)

// Timeout bounds every request to one budget. The request context is
// cancelled so provider calls and queries stop, and the client gets the
// standard error envelope instead of a hung connection.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		bounded := http.TimeoutHandler(next, timeout,
			`{"success":false,"error":{"code":"TIMEOUT","message":"Request timeout"}}`)

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			bounded.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
