package auth

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"
)

// Envelope wraps an identity service reply: the upstream status and the
// upstream body under message. The body is either embedded as an object or
// encoded as a JSON string.
type Envelope struct {
	Status  int             `json:"status"`
	Message json.RawMessage `json:"message"`
}

type authority struct {
	Name *string `json:"name"`
}

type role struct {
	Name        string      `json:"name"`
	Authorities []authority `json:"authorities"`
}

type claims struct {
	Username *string `json:"username"`
	Roles    *[]role `json:"roles"`
}

type validationDocument struct {
	Data *claims `json:"data"`
}

// Extract flattens roles[*].authorities[*].name of the envelope into the
// permission set of a new Principal.
func Extract(env *Envelope) (*Principal, error) {
	if env == nil {
		return nil, fmt.Errorf("%w: no envelope", ErrMalformedEnvelope)
	}
	raw := bytes.TrimSpace(env.Message)
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: message is missing", ErrMalformedEnvelope)
	}
	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
		}
		raw = []byte(inner)
	}

	var doc validationDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	switch {
	case doc.Data == nil:
		return nil, fmt.Errorf("%w: data is missing", ErrMalformedEnvelope)
	case doc.Data.Username == nil || *doc.Data.Username == "":
		return nil, fmt.Errorf("%w: data.username is missing", ErrMalformedEnvelope)
	case doc.Data.Roles == nil:
		return nil, fmt.Errorf("%w: data.roles is missing", ErrMalformedEnvelope)
	}

	var permissions []string
	for i, r := range *doc.Data.Roles {
		for j, a := range r.Authorities {
			if a.Name == nil || *a.Name == "" {
				return nil, fmt.Errorf("%w: data.roles[%d].authorities[%d].name is missing", ErrMalformedEnvelope, i, j)
			}
			permissions = append(permissions, *a.Name)
		}
	}
	return NewPrincipal(*doc.Data.Username, permissions...), nil
}
