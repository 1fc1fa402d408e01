package circuitbreaker

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/workshop/vehicleapi/internal/logger"
	"github.com/workshop/vehicleapi/internal/reliability"
)

var (
	ErrCircuitOpen = errors.New("circuit breaker is open")
)

// Redis Keys:
// cb:{name}:failures -> consecutive failures
// cb:{name}:open -> present while the circuit is open, expires after the cool-down

type CircuitBreaker struct {
	client           redis.Cmdable
	failureThreshold int64
	timeout          time.Duration
	strategy         reliability.FailureStrategy
}

// New creates a breaker that opens after failureThreshold consecutive
// failures and stays open for timeout. The state is shared through redis so
// every replica sees the same circuit.
func New(client redis.Cmdable, failureThreshold int64, timeout time.Duration) *CircuitBreaker {
	if failureThreshold < 1 {
		failureThreshold = 1
	}
	return &CircuitBreaker{
		client:           client,
		failureThreshold: failureThreshold,
		timeout:          timeout,
		strategy:         reliability.FailOpen,
	}
}

func failureKey(name string) string { return "cb:" + name + ":failures" }
func openKey(name string) string    { return "cb:" + name + ":open" }

// Execute runs action unless the circuit for name is open.
func (cb *CircuitBreaker) Execute(ctx context.Context, name string, action func() error) error {
	open, err := cb.client.Exists(ctx, openKey(name)).Result()
	if err != nil {
		if !reliability.ShouldAllow(cb.strategy, err) {
			return err
		}
		logger.FromContext(ctx).WithError(err).Warn("circuit breaker state unavailable (fail open)")
		return action()
	}
	if open > 0 {
		return ErrCircuitOpen
	}

	if opErr := action(); opErr != nil {
		failures, err := cb.client.Incr(ctx, failureKey(name)).Result()
		if err == nil && failures >= cb.failureThreshold {
			pipe := cb.client.TxPipeline()
			pipe.Set(ctx, openKey(name), "1", cb.timeout)
			pipe.Del(ctx, failureKey(name))
			if _, err := pipe.Exec(ctx); err != nil {
				logger.FromContext(ctx).WithError(err).Warn("circuit breaker could not open")
			} else {
				logger.FromContext(ctx).WithField("circuit", name).Warnf("circuit opened for %s", cb.timeout)
			}
		}
		return opErr
	}

	cb.client.Del(ctx, failureKey(name))
	return nil
}

// IsOpen reports whether the circuit for name is currently open.
func (cb *CircuitBreaker) IsOpen(ctx context.Context, name string) (bool, error) {
	n, err := cb.client.Exists(ctx, openKey(name)).Result()
	return n > 0, err
}
