package cache

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/stockalert-pro/stockalert-slack-app/internal/cache/metrics"
)

// Layered composes the near (in-process) and far (shared Redis) tiers behind
// a try-near, then-far, then-load strategy. The far tier is optional; a nil
// far tier degrades to in-process caching plus direct durable-store reads,
// which is also the behavior whenever the far tier errors.
type Layered struct {
	near Tier
	far  Tier

	logger  *slog.Logger
	metrics *metrics.Metrics
	group   singleflight.Group
}

// Option configures a Layered cache.
type Option func(*Layered)

// WithLogger sets the structured logger for far-tier degradation events.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Layered) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Layered) {
		l.metrics = m
	}
}

// NewLayered creates a two-tier cache. far may be nil for single-instance
// deployments without a shared tier.
func NewLayered(near, far Tier, opts ...Option) *Layered {
	l := &Layered{
		near:   near,
		far:    far,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Get checks the near tier, then the far tier. A far-tier hit repopulates
// the near tier. Far-tier errors are swallowed and counted, never returned.
func (l *Layered) Get(ctx context.Context, key string, ttl time.Duration) ([]byte, bool) {
	if value, ok, _ := l.near.Get(ctx, key); ok {
		if l.metrics != nil {
			l.metrics.RecordHit("near")
		}
		return value, true
	}

	if l.far == nil {
		return nil, false
	}

	value, ok, err := l.far.Get(ctx, key)
	if err != nil {
		l.recordFarError("get", key, err)
		return nil, false
	}
	if !ok {
		return nil, false
	}

	if l.metrics != nil {
		l.metrics.RecordHit("far")
	}
	_ = l.near.Set(ctx, key, value, ttl) //nolint:errcheck // in-process set cannot fail
	return value, true
}

// Set mirrors an already-durable value into both tiers. It must only be
// called after the durable store write succeeded; the cache is never the
// sole record of truth.
func (l *Layered) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	_ = l.near.Set(ctx, key, value, ttl) //nolint:errcheck
	if l.far != nil {
		if err := l.far.Set(ctx, key, value, ttl); err != nil {
			l.recordFarError("set", key, err)
		}
	}
}

// Delete proactively removes key from both tiers. Used on mutation paths
// (disconnect, default-channel change) so staleness is bounded by the write,
// not by TTL expiry.
func (l *Layered) Delete(ctx context.Context, key string) {
	_ = l.near.Delete(ctx, key) //nolint:errcheck
	if l.far != nil {
		if err := l.far.Delete(ctx, key); err != nil {
			l.recordFarError("delete", key, err)
		}
	}
	if l.metrics != nil {
		l.metrics.RecordInvalidation()
	}
}

// GetOrLoad returns the cached value for key, invoking loader on a full miss
// and populating both tiers with the result. Concurrent loads for the same
// key are collapsed into a single loader call.
func (l *Layered) GetOrLoad(ctx context.Context, key string, ttl time.Duration, loader Loader) ([]byte, error) {
	if value, ok := l.Get(ctx, key, ttl); ok {
		return value, nil
	}

	result, err, _ := l.group.Do(key, func() (any, error) {
		// Another goroutine may have populated the cache while this one
		// waited on the flight group.
		if value, ok := l.Get(ctx, key, ttl); ok {
			return value, nil
		}
		if l.metrics != nil {
			l.metrics.RecordMiss()
			l.metrics.RecordLoad()
		}
		value, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		l.Set(ctx, key, value, ttl)
		return value, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

func (l *Layered) recordFarError(op, key string, err error) {
	if l.metrics != nil {
		l.metrics.RecordFarError()
	}
	l.logger.Warn("shared cache tier degraded",
		"op", op,
		"key", key,
		"error", err,
	)
}
