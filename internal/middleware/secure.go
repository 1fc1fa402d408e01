package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/workshop/vehicleapi/internal/httpx"
)

// SecurityConfig options
type SecurityConfig struct {
	EnableReplayProtection bool
	ReplayWindow           time.Duration
}

const TimestampHeader = "X-Timestamp"

func SecureHeaders(cfg SecurityConfig) Middleware {
	return secureHeaders(cfg, time.Now)
}

func secureHeaders(cfg SecurityConfig, now func() time.Time) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("X-XSS-Protection", "1; mode=block")
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")

			if cfg.EnableReplayProtection {
				ts := r.Header.Get(TimestampHeader)
				if ts == "" {
					writeMessage(w, http.StatusBadRequest, "Missing X-Timestamp header")
					return
				}
				reqTime, err := strconv.ParseInt(ts, 10, 64)
				if err != nil {
					writeMessage(w, http.StatusBadRequest, "Invalid X-Timestamp header")
					return
				}
				server := now().Unix()
				skew := time.Duration(server-reqTime) * time.Second
				if skew < 0 {
					skew = -skew
				}
				if skew > cfg.ReplayWindow {
					writeMessage(w, http.StatusForbidden,
						fmt.Sprintf("Request timestamp skewed (server: %d, req: %d)", server, reqTime))
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	httpx.WriteJSON(w, status, map[string]interface{}{"status": status, "message": msg})
}
