package middleware

import (
	"net/http"

	"github.com/workshop/vehicleapi/internal/auth"
	"github.com/workshop/vehicleapi/internal/logger"
)

// Authenticate resolves the bearer token of every request into an
// auth.State. It never rejects a request; Authorize does that.
func Authenticate(v auth.Validator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			rlog := logger.FromContext(ctx)

			token, ok := auth.BearerToken(r.Header.Get("Authorization"))
			if !ok {
				next.ServeHTTP(w, r.WithContext(auth.WithState(ctx, auth.State{Err: auth.ErrCredentialMissing})))
				return
			}

			out := v.Validate(ctx, token)
			if out.Kind != auth.Valid {
				err := out.Err()
				rlog.WithError(err).WithField("upstream_status", out.Status).Info("request not authenticated")
				next.ServeHTTP(w, r.WithContext(auth.WithState(ctx, auth.State{Err: err})))
				return
			}

			principal, err := auth.Extract(out.Envelope)
			if err != nil {
				rlog.WithError(err).Warn("identity service returned an unusable envelope")
				next.ServeHTTP(w, r.WithContext(auth.WithState(ctx, auth.State{Err: err})))
				return
			}

			ctx, _ = logger.ContextWithLoggerIdentity(ctx, principal.Username)
			ctx = auth.WithState(ctx, auth.State{Principal: principal})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
