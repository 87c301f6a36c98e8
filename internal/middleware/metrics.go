package middleware

import (
	"net/http"
	"time"

	"github.com/thenfour/CafeMarcheDB-sub005/internal/metrics"
)

// Metrics records request counts and latency per route pattern. It must wrap
// the ServeMux directly: the mux sets r.Pattern on the request it is given,
// and middlewares that replace the request hide that from outer layers.
func Metrics(m *metrics.Metrics) Middleware {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			m.ObserveRequest(r.Method, r.Pattern, wrapped.statusCode, time.Since(start))
		})
	}
}
