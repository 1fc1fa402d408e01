package auth

import "errors"

var (
	ErrCredentialMissing          = errors.New("bearer token is missing")
	ErrCredentialRejected         = errors.New("bearer token rejected")
	ErrMalformedEnvelope          = errors.New("malformed authorization envelope")
	ErrIdentityServiceUnavailable = errors.New("identity service unavailable")
	ErrIdentityServiceTransport   = errors.New("identity service transport error")
	ErrPermissionDenied           = errors.New("permission denied")
)
