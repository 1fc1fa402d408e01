// Package discovery resolves a logical service name to live instances.
package discovery

import (
	"context"
	"errors"
	"strings"
)

var ErrInvalidInstance = errors.New("invalid instance")

// Instance is one reachable copy of a service.
type Instance struct {
	ID      string `json:"id"`
	BaseURL string `json:"base_url"`
}

// Resolver returns the instances currently registered under a service name.
// An empty slice with a nil error means nothing is registered.
type Resolver interface {
	Instances(ctx context.Context, service string) ([]Instance, error)
}

// Static is a fixed list of instances, the same for every service name.
type Static []Instance

// NewStatic builds a Static resolver from base URLs. Blank entries are skipped.
func NewStatic(baseURLs ...string) Static {
	var s Static
	for _, u := range baseURLs {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		s = append(s, Instance{ID: u, BaseURL: u})
	}
	return s
}

func (s Static) Instances(ctx context.Context, service string) ([]Instance, error) {
	out := make([]Instance, len(s))
	copy(out, s)
	return out, nil
}

var _ Resolver = Static(nil)
