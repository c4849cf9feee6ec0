package window

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stockalert-pro/stockalert-slack-app/internal/ratelimit/models"
	"github.com/stockalert-pro/stockalert-slack-app/pkg/platform/circuit"
)

// allowScript implements the sliding window check atomically server-side:
// prune entries older than the window, compare the surviving count against
// the limit, and only then record the new timestamp and refresh the key
// expiry. Scores and arguments are in milliseconds.
//
// Returns {allowed, count_after, reset_basis_ms} where reset_basis_ms is the
// oldest surviving score on rejection and the current time on admission.
var allowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, 0, now - window)
local count = redis.call('ZCARD', key)
if count >= limit then
	local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
	return {0, count, tonumber(oldest[2])}
end
redis.call('ZADD', key, now, member)
redis.call('PEXPIRE', key, window)
return {1, count + 1, now}
`)

// RedisStore implements sliding window rate limiting on a shared Redis, so
// all instances observe one counter per key. Each window is a ZSET of
// admission timestamps with the key expiring after one idle window.
type RedisStore struct {
	client  redis.Cmdable
	breaker *circuit.Breaker
	now     func() time.Time
}

// NewRedis creates a Redis-backed sliding window store.
func NewRedis(client redis.Cmdable) *RedisStore {
	return &RedisStore{
		client:  client,
		breaker: circuit.New("ratelimit-redis"),
		now:     time.Now,
	}
}

// Allow runs the atomic window check. Errors from Redis are returned as-is;
// the service layer decides the fail-open policy, not the store. A tripped
// breaker returns an error immediately so an outage does not cost one Redis
// timeout per request.
func (s *RedisStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.Result, error) {
	if !s.breaker.Allow() {
		return nil, fmt.Errorf("rate limit check: %w", errCircuitOpen)
	}

	now := s.now()
	member, err := uniqueMember(now)
	if err != nil {
		return nil, fmt.Errorf("rate limit member: %w", err)
	}

	raw, err := allowScript.Run(ctx, s.client, []string{key},
		now.UnixMilli(),
		window.Milliseconds(),
		limit,
		member,
	).Result()
	if err != nil {
		s.breaker.RecordFailure()
		return nil, fmt.Errorf("rate limit check: %w", err)
	}
	s.breaker.RecordSuccess()

	reply, ok := raw.([]any)
	if !ok || len(reply) != 3 {
		return nil, fmt.Errorf("rate limit check: unexpected reply %T", raw)
	}
	allowed := toInt64(reply[0]) == 1
	count := int(toInt64(reply[1]))
	basis := time.UnixMilli(toInt64(reply[2]))

	if !allowed {
		resetAt := basis.Add(window)
		return &models.Result{
			Allowed:    false,
			Limit:      limit,
			Remaining:  0,
			ResetAt:    resetAt,
			RetryAfter: retryAfterSeconds(now, resetAt),
		}, nil
	}

	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return &models.Result{
		Allowed:   true,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   now.Add(window),
	}, nil
}

// Reset clears the counter for a key.
func (s *RedisStore) Reset(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

// uniqueMember builds a ZSET member that cannot collide when two requests
// land on the same millisecond.
func uniqueMember(now time.Time) (string, error) {
	suffix := make([]byte, 4)
	if _, err := rand.Read(suffix); err != nil {
		return "", err
	}
	return strconv.FormatInt(now.UnixNano(), 10) + "-" + hex.EncodeToString(suffix), nil
}

var errCircuitOpen = errors.New("circuit open")

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case string:
		parsed, _ := strconv.ParseInt(n, 10, 64)
		return parsed
	default:
		return 0
	}
}
