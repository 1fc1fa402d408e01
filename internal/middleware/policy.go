package middleware

import (
	"context"
	"net/http"

	"github.com/workshop/vehicleapi/internal/policy"
)

type contextKey string

const PolicyContextKey contextKey = "policy"

// PolicyEnforcer evaluates the request and attaches the decision to context
func PolicyEnforcer(engine *policy.Engine) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := engine.Evaluate(r.Method, r.URL.Path)
			ctx := context.WithValue(r.Context(), PolicyContextKey, d)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetPolicy returns the decision for the request, or the default decision
// when PolicyEnforcer did not run.
func GetPolicy(ctx context.Context) policy.Decision {
	if d, ok := ctx.Value(PolicyContextKey).(policy.Decision); ok {
		return d
	}
	return policy.DefaultDecision
}
