package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stockalert-pro/stockalert-slack-app/pkg/platform/circuit"
)

// Redis is the shared external cache tier. All errors from the underlying
// client are surfaced to the layered composer, which swallows and counts
// them; the circuit breaker keeps a dead Redis from costing a timeout on
// every request.
type Redis struct {
	client  redis.Cmdable
	breaker *circuit.Breaker
}

// NewRedis wraps a go-redis client as a cache tier.
func NewRedis(client redis.Cmdable) *Redis {
	return &Redis{
		client:  client,
		breaker: circuit.New("cache-redis"),
	}
}

// Get returns the value for key, or ok=false on a miss.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if !r.breaker.Allow() {
		return nil, false, circuitOpenErr
	}
	value, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		r.breaker.RecordSuccess()
		return nil, false, nil
	}
	if err != nil {
		r.breaker.RecordFailure()
		return nil, false, err
	}
	r.breaker.RecordSuccess()
	return value, true, nil
}

// Set stores value under key with the given TTL.
func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if !r.breaker.Allow() {
		return circuitOpenErr
	}
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		r.breaker.RecordFailure()
		return err
	}
	r.breaker.RecordSuccess()
	return nil
}

// Delete removes key.
func (r *Redis) Delete(ctx context.Context, key string) error {
	if !r.breaker.Allow() {
		return circuitOpenErr
	}
	if err := r.client.Del(ctx, key).Err(); err != nil {
		r.breaker.RecordFailure()
		return err
	}
	r.breaker.RecordSuccess()
	return nil
}

var circuitOpenErr = errors.New("cache circuit open")

var _ Tier = (*Redis)(nil)
