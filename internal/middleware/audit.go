package middleware

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/workshop/vehicleapi/internal/audit"
	"github.com/workshop/vehicleapi/internal/auth"
	"github.com/workshop/vehicleapi/internal/logger"
)

// AuditMiddleware records every state-changing request, including the ones
// that were refused.
func AuditMiddleware(l audit.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()
			rw := newInterceptor(w)

			next.ServeHTTP(rw, r)

			actorID := "anonymous"
			if p := auth.PrincipalFromContext(r.Context()); p != nil {
				actorID = p.Username
			}
			route := r.URL.Path
			if cur := mux.CurrentRoute(r); cur != nil {
				if tpl, err := cur.GetPathTemplate(); err == nil {
					route = tpl
				}
			}

			l.Log(audit.LogEntry{
				Timestamp: start.UTC(),
				RequestID: logger.RequestIDFromContext(r.Context()),
				ActorID:   actorID,
				Action:    r.Method + " " + route,
				Resource:  r.URL.Path,
				Status:    rw.statusCode,
				Metadata: map[string]interface{}{
					"remote_addr": r.RemoteAddr,
					"user_agent":  r.UserAgent(),
					"duration_ms": time.Since(start).Milliseconds(),
					"policy_rule": GetPolicy(r.Context()).RuleID,
				},
			})
		})
	}
}
