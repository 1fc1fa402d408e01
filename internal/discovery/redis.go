package discovery

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/workshop/vehicleapi/internal/logger"
)

// Redis Keys:
// discovery:{service}:leases -> zset member=instance id, score=lease expiry (unix ms)
// discovery:{service}:instances -> hash instance id -> instance json

// RedisRegistry keeps instance leases in redis. An instance is live until its
// lease expires; KeepAlive renews it.
type RedisRegistry struct {
	client redis.Cmdable
	now    func() time.Time
}

func NewRedisRegistry(client redis.Cmdable) *RedisRegistry {
	return &RedisRegistry{client: client, now: time.Now}
}

func leaseKey(service string) string    { return "discovery:" + service + ":leases" }
func instanceKey(service string) string { return "discovery:" + service + ":instances" }

// Register adds or renews inst under service for ttl.
func (r *RedisRegistry) Register(ctx context.Context, service string, inst Instance, ttl time.Duration) error {
	if inst.ID == "" || inst.BaseURL == "" {
		return fmt.Errorf("%w: id and base url are required", ErrInvalidInstance)
	}
	data, err := json.Marshal(inst)
	if err != nil {
		return err
	}
	expiry := r.now().Add(ttl).UnixMilli()

	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, instanceKey(service), inst.ID, data)
	pipe.ZAdd(ctx, leaseKey(service), redis.Z{Score: float64(expiry), Member: inst.ID})
	_, err = pipe.Exec(ctx)
	return err
}

// Deregister removes inst immediately.
func (r *RedisRegistry) Deregister(ctx context.Context, service, id string) error {
	pipe := r.client.TxPipeline()
	pipe.ZRem(ctx, leaseKey(service), id)
	pipe.HDel(ctx, instanceKey(service), id)
	_, err := pipe.Exec(ctx)
	return err
}

// Instances prunes expired leases and returns the rest, most recently renewed
// lease first.
func (r *RedisRegistry) Instances(ctx context.Context, service string) ([]Instance, error) {
	now := strconv.FormatInt(r.now().UnixMilli(), 10)

	expired, err := r.client.ZRangeByScore(ctx, leaseKey(service), &redis.ZRangeBy{Min: "-inf", Max: "(" + now}).Result()
	if err != nil {
		return nil, err
	}
	if len(expired) > 0 {
		pipe := r.client.TxPipeline()
		pipe.ZRemRangeByScore(ctx, leaseKey(service), "-inf", "("+now)
		pipe.HDel(ctx, instanceKey(service), expired...)
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, err
		}
	}

	ids, err := r.client.ZRevRangeByScore(ctx, leaseKey(service), &redis.ZRangeBy{Min: now, Max: "+inf"}).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	raw, err := r.client.HMGet(ctx, instanceKey(service), ids...).Result()
	if err != nil {
		return nil, err
	}

	instances := make([]Instance, 0, len(raw))
	for i, v := range raw {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var inst Instance
		if err := json.Unmarshal([]byte(s), &inst); err != nil {
			logger.FromContext(ctx).WithError(err).Warnf("discovery: skipping unreadable instance %s", ids[i])
			continue
		}
		instances = append(instances, inst)
	}
	return instances, nil
}

// KeepAlive registers inst and renews the lease every ttl/3 until ctx is
// done, then deregisters it.
func (r *RedisRegistry) KeepAlive(ctx context.Context, service string, inst Instance, ttl time.Duration) error {
	if err := r.Register(ctx, service, inst, ttl); err != nil {
		return err
	}
	rlog := logger.FromContext(ctx).WithField("service", service)
	ticker := time.NewTicker(ttl / 3)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			cleanup, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			err := r.Deregister(cleanup, service, inst.ID)
			cancel()
			return err
		case <-ticker.C:
			if err := r.Register(ctx, service, inst, ttl); err != nil {
				rlog.WithError(err).Warn("discovery: lease renewal failed")
			}
		}
	}
}

var _ Resolver = (*RedisRegistry)(nil)
