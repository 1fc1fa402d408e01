package discovery

import (
	"context"
	"time"

	"github.com/workshop/vehicleapi/internal/cache"
)

// Cached keeps the last non-empty instance list of each service for ttl so
// that not every request reaches the registry. Errors and empty lists are
// never cached.
type Cached struct {
	next  Resolver
	ttl   time.Duration
	cache *cache.TTL[[]Instance]
}

func NewCached(next Resolver, ttl time.Duration) *Cached {
	return &Cached{next: next, ttl: ttl, cache: cache.NewTTL[[]Instance]()}
}

func (c *Cached) Instances(ctx context.Context, service string) ([]Instance, error) {
	if hit, ok := c.cache.Get(service); ok {
		return append([]Instance(nil), hit...), nil
	}
	instances, err := c.next.Instances(ctx, service)
	if err != nil || len(instances) == 0 {
		return instances, err
	}
	c.cache.Set(service, append([]Instance(nil), instances...), c.ttl)
	return instances, nil
}

var _ Resolver = (*Cached)(nil)
