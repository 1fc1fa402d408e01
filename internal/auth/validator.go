package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/workshop/vehicleapi/internal/circuitbreaker"
	"github.com/workshop/vehicleapi/internal/discovery"
	"github.com/workshop/vehicleapi/internal/httpx"
	"github.com/workshop/vehicleapi/internal/logger"
)

type OutcomeKind int

const (
	Valid OutcomeKind = iota + 1
	Rejected
	Unavailable
	TransportError
)

func (k OutcomeKind) String() string {
	switch k {
	case Valid:
		return "valid"
	case Rejected:
		return "rejected"
	case Unavailable:
		return "unavailable"
	case TransportError:
		return "transport_error"
	default:
		return "unknown"
	}
}

// Outcome is the classified result of one remote validation.
type Outcome struct {
	Kind     OutcomeKind
	Status   int       // upstream status for Valid and Rejected
	Body     []byte    // upstream body for Rejected, verbatim
	Envelope *Envelope // set for Valid
	Cause    error
}

// Err maps the outcome onto the auth error taxonomy. Valid maps to nil.
func (o Outcome) Err() error {
	switch o.Kind {
	case Valid:
		return nil
	case Rejected:
		if errors.Is(o.Cause, ErrCredentialMissing) {
			return ErrCredentialMissing
		}
		return fmt.Errorf("%w: identity service answered %d", ErrCredentialRejected, o.Status)
	case Unavailable:
		return fmt.Errorf("%w: %v", ErrIdentityServiceUnavailable, o.Cause)
	default:
		return fmt.Errorf("%w: %v", ErrIdentityServiceTransport, o.Cause)
	}
}

// Validator checks a bearer token.
type Validator interface {
	Validate(ctx context.Context, token string) Outcome
}

// Breaker guards the outbound call. circuitbreaker.CircuitBreaker satisfies it.
type Breaker interface {
	Execute(ctx context.Context, name string, action func() error) error
}

type ValidatorConfig struct {
	ServiceName  string
	ValidatePath string
	Timeout      time.Duration
}

var missingTokenBody = []byte(`{"status":400,"message":"Bearer token is missing"}`)

// RemoteValidator asks the identity service about every token. Nothing is
// cached and failed calls are not retried.
type RemoteValidator struct {
	resolver discovery.Resolver
	breaker  Breaker
	client   *http.Client
	cfg      ValidatorConfig
}

// NewRemoteValidator creates a validator. breaker may be nil.
func NewRemoteValidator(resolver discovery.Resolver, breaker Breaker, cfg ValidatorConfig) *RemoteValidator {
	return &RemoteValidator{
		resolver: resolver,
		breaker:  breaker,
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		cfg: cfg,
	}
}

func (v *RemoteValidator) Validate(ctx context.Context, token string) Outcome {
	if token == "" {
		return Outcome{Kind: Rejected, Status: http.StatusBadRequest, Body: missingTokenBody, Cause: ErrCredentialMissing}
	}

	instances, err := v.resolver.Instances(ctx, v.cfg.ServiceName)
	if err != nil {
		return Outcome{Kind: TransportError, Cause: fmt.Errorf("resolve %s: %w", v.cfg.ServiceName, err)}
	}
	if len(instances) == 0 {
		return Outcome{Kind: Unavailable, Cause: fmt.Errorf("no instances of %s registered", v.cfg.ServiceName)}
	}
	inst := instances[0]
	target, err := resolveURL(inst.BaseURL, v.cfg.ValidatePath)
	if err != nil {
		return Outcome{Kind: TransportError, Cause: err}
	}

	rlog := logger.FromContext(ctx).WithField("instance", inst.ID)

	var out Outcome
	called := false
	call := func() error {
		called = true
		status, body, err := httpx.Do(ctx, v.client, http.MethodGet, target, nil, map[string]string{
			"Authorization": bearerPrefix + token,
			"Accept":        "application/json",
		})
		if err != nil {
			out = Outcome{Kind: TransportError, Cause: err}
			return err
		}
		if status >= 200 && status < 300 {
			out = Outcome{Kind: Valid, Status: status, Envelope: &Envelope{Status: status, Message: body}}
			return nil
		}
		out = Outcome{Kind: Rejected, Status: status, Body: body}
		if status >= 500 {
			return fmt.Errorf("identity service answered %d", status)
		}
		return nil
	}

	if v.breaker == nil {
		_ = call()
	} else if err := v.breaker.Execute(ctx, v.cfg.ServiceName, call); errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		rlog.Warn("identity service circuit is open")
		return Outcome{Kind: Unavailable, Cause: err}
	} else if !called {
		return Outcome{Kind: TransportError, Cause: err}
	}

	rlog.WithField("outcome", out.Kind.String()).Debug("token validated remotely")
	return out
}

// resolveURL resolves path against base the way a browser resolves a link.
func resolveURL(base, path string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("bad instance url %q: %w", base, err)
	}
	ref, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("bad validate path %q: %w", path, err)
	}
	return b.ResolveReference(ref).String(), nil
}

var _ Validator = (*RemoteValidator)(nil)
