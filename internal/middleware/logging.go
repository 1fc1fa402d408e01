package middleware

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/workshop/vehicleapi/internal/logger"
)

// AccessLog writes one line per request at info level, or warn for 5xx.
func AccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := newInterceptor(w)

		next.ServeHTTP(rw, r)

		entry := logger.FromContext(r.Context()).WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rw.statusCode,
			"duration": time.Since(start).String(),
		})
		if rw.statusCode >= 500 {
			entry.Warn("request failed")
			return
		}
		entry.Info("request")
	})
}
