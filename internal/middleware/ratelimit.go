package middleware

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"

	"github.com/workshop/vehicleapi/internal/auth"
	"github.com/workshop/vehicleapi/internal/config"
	"github.com/workshop/vehicleapi/internal/limiter"
	"github.com/workshop/vehicleapi/internal/logger"
	"github.com/workshop/vehicleapi/internal/reliability"
)

type RateLimiter interface {
	Allow(ctx context.Context, key string, rate float64, burst int) (bool, float64, error)
}

// RateLimit applies the dynamic rate limit per principal, or per client IP
// for unauthenticated requests.
func RateLimit(l RateLimiter, cfgMgr *config.DynamicConfigManager, strategy reliability.FailureStrategy) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := cfgMgr.GetPolicy()

			key := "ratelimit:ip:" + clientIP(r)
			if principal := auth.PrincipalFromContext(r.Context()); principal != nil {
				key = "ratelimit:user:" + principal.Username
			}

			allowed, remaining, err := l.Allow(r.Context(), key, p.DefaultRateLimit, p.DefaultBurst)

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(p.DefaultBurst))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(int(remaining)))

			if errors.Is(err, limiter.ErrRateLimitExceeded) || (err == nil && !allowed) {
				writeMessage(w, http.StatusTooManyRequests, "Too Many Requests")
				return
			}
			if err != nil {
				if !reliability.ShouldAllow(strategy, err) {
					logger.FromContext(r.Context()).WithError(err).Error("rate limiter unavailable (fail closed)")
					writeMessage(w, http.StatusServiceUnavailable, "Service Unavailable")
					return
				}
				logger.FromContext(r.Context()).WithError(err).Warn("rate limiter unavailable (fail open)")
			}

			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
