package limiter

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
)

// luaScript implements the token bucket algorithm atomically
// KEYS[1] = bucket key
// ARGV[1] = capacity (burst size)
// ARGV[2] = refill rate (tokens per second)
// ARGV[3] = current timestamp (unix milliseconds)
// ARGV[4] = requested tokens
// ARGV[5] = key ttl (seconds)
// Returns: [allowed (1/0), whole tokens remaining]
const luaScript = `
local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local requested = tonumber(ARGV[4])
local ttl = tonumber(ARGV[5])

local info = redis.call("HMGET", key, "tokens", "last_refill")
local tokens = tonumber(info[1])
local last_refill = tonumber(info[2])

if not tokens then
	tokens = capacity
	last_refill = now
end

local delta = math.max(0, now - last_refill)
local filled = math.min(capacity, tokens + (delta * rate / 1000))

local allowed = 0
if filled >= requested then
	allowed = 1
	filled = filled - requested
end

redis.call("HMSET", key, "tokens", tostring(filled), "last_refill", now)
redis.call("EXPIRE", key, ttl)

return {allowed, math.floor(filled)}
`

type TokenBucketLimiter struct {
	client redis.Cmdable
	script *redis.Script
	now    func() time.Time
}

func NewTokenBucketLimiter(client redis.Cmdable) *TokenBucketLimiter {
	return &TokenBucketLimiter{client: client, script: redis.NewScript(luaScript), now: time.Now}
}

// Allow takes one token from the bucket at key.
// rate: tokens per second
// burst: maximum capacity
// A refused request returns ErrRateLimitExceeded; any other error means the
// bucket could not be consulted.
func (l *TokenBucketLimiter) Allow(ctx context.Context, key string, rate float64, burst int) (bool, float64, error) {
	if rate <= 0 || burst <= 0 {
		return false, 0, fmt.Errorf("invalid bucket: rate %v burst %d", rate, burst)
	}
	ttl := int64(math.Ceil(float64(burst)/rate)) + 1

	result, err := l.script.Run(ctx, l.client, []string{key}, burst, rate, l.now().UnixMilli(), 1, ttl).Slice()
	if err != nil {
		return false, 0, err
	}
	if len(result) != 2 {
		return false, 0, fmt.Errorf("unexpected limiter reply %v", result)
	}
	allowed, _ := result[0].(int64)
	remaining, _ := result[1].(int64)

	if allowed != 1 {
		return false, float64(remaining), ErrRateLimitExceeded
	}
	return true, float64(remaining), nil
}
