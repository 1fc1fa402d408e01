package auth

import (
	"context"
	"sort"
	"strings"
)

// Principal is the authenticated caller of one request.
type Principal struct {
	Username    string
	permissions map[string]struct{}
}

// NewPrincipal builds a principal; repeated permissions collapse.
func NewPrincipal(username string, permissions ...string) *Principal {
	p := &Principal{Username: username, permissions: make(map[string]struct{}, len(permissions))}
	for _, perm := range permissions {
		p.permissions[perm] = struct{}{}
	}
	return p
}

// Has reports whether p holds permission. A nil principal holds nothing.
func (p *Principal) Has(permission string) bool {
	if p == nil {
		return false
	}
	_, ok := p.permissions[permission]
	return ok
}

// Permissions returns the permission set in sorted order.
func (p *Principal) Permissions() []string {
	if p == nil {
		return nil
	}
	out := make([]string, 0, len(p.permissions))
	for perm := range p.permissions {
		out = append(out, perm)
	}
	sort.Strings(out)
	return out
}

type ContextKey string

const StateContextKey ContextKey = "auth_state"

// State is the result of authenticating a request. Principal is nil when the
// request is unauthenticated, and Err then says why.
type State struct {
	Principal *Principal
	Err       error
}

func WithState(ctx context.Context, s State) context.Context {
	return context.WithValue(ctx, StateContextKey, s)
}

// StateFromContext returns the authentication state. ok is false when no
// authentication ran for this request.
func StateFromContext(ctx context.Context) (State, bool) {
	s, ok := ctx.Value(StateContextKey).(State)
	return s, ok
}

// PrincipalFromContext returns the authenticated principal or nil.
func PrincipalFromContext(ctx context.Context) *Principal {
	s, _ := StateFromContext(ctx)
	return s.Principal
}

const bearerPrefix = "Bearer "

// BearerToken extracts the token from an Authorization header value. ok is
// false when the header is absent or does not use the Bearer scheme.
func BearerToken(header string) (token string, ok bool) {
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix)), true
}
