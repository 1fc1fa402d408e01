package middleware

import (
	"errors"
	"net/http"

	"github.com/workshop/vehicleapi/internal/auth"
	"github.com/workshop/vehicleapi/internal/httpx"
	"github.com/workshop/vehicleapi/internal/logger"
)

type authMessage struct {
	Message string `json:"message"`
}

// Authorize enforces the decision PolicyEnforcer attached to the request:
// no principal is 401, a principal without the permission is 403.
func Authorize() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			state, ok := auth.StateFromContext(r.Context())
			if !ok || state.Principal == nil {
				writeAuthFailure(w, state.Err)
				return
			}

			d := GetPolicy(r.Context())
			if d.Permission != "" && !state.Principal.Has(d.Permission) {
				logger.FromContext(r.Context()).WithField("rule", d.RuleID).
					Infof("permission %s missing", d.Permission)
				httpx.WriteJSON(w, http.StatusForbidden, authMessage{Message: "Forbidden: Access Denied"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeAuthFailure(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrIdentityServiceUnavailable):
		httpx.WriteJSON(w, http.StatusServiceUnavailable, authMessage{Message: "Service Unavailable: identity service unavailable"})
	case errors.Is(err, auth.ErrIdentityServiceTransport):
		httpx.WriteJSON(w, http.StatusInternalServerError, authMessage{Message: "Internal Server Error: error occurred while validating token"})
	case errors.Is(err, auth.ErrMalformedEnvelope):
		unauthorized(w, "malformed token validation response")
	case errors.Is(err, auth.ErrCredentialRejected):
		unauthorized(w, "invalid or expired token")
	default:
		unauthorized(w, "Bearer token is missing")
	}
}

func unauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	httpx.WriteJSON(w, http.StatusUnauthorized, authMessage{Message: "Unauthorized: " + detail})
}
