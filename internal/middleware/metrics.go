package middleware

import (
	"net/http"
	"time"

	"github.com/workshop/vehicleapi/internal/auth"
	"github.com/workshop/vehicleapi/internal/metrics"
)

func MetricsMiddleware(collector *metrics.MetricsCollector) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := newInterceptor(w)

			next.ServeHTTP(rw, r)

			client := ""
			if p := auth.PrincipalFromContext(r.Context()); p != nil {
				client = p.Username
			}
			collector.Record(time.Since(start), rw.statusCode, client)
		})
	}
}
