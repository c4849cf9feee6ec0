package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/stockalert-pro/stockalert-slack-app/internal/ledger/metrics"
)

// LedgerStore exposes retention purging for processed events.
type LedgerStore interface {
	PurgeProcessedOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

// Result summarizes a single purge run.
type Result struct {
	Deleted int
	Elapsed time.Duration
}

// Service periodically removes processed events older than the retention
// window. Unprocessed events are kept so a stuck delivery stays visible.
type Service struct {
	store     LedgerStore
	retention time.Duration
	interval  time.Duration
	logger    *slog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

// Option configures the cleanup service.
type Option func(*Service)

// WithInterval overrides the run interval when greater than zero.
func WithInterval(interval time.Duration) Option {
	return func(s *Service) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

// WithLogger overrides the logger used for purge outcomes.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder for purge runs.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs the retention worker.
func New(store LedgerStore, retention time.Duration, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("ledger store is required")
	}
	if retention <= 0 {
		return nil, fmt.Errorf("retention must be positive")
	}
	svc := &Service{
		store:     store,
		retention: retention,
		interval:  time.Hour,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc, nil
}

// Start runs purges periodically until ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil {
				s.logger.ErrorContext(ctx, "ledger_purge_failed", "error", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RunOnce performs a single retention purge.
func (s *Service) RunOnce(ctx context.Context) (Result, error) {
	start := s.now()
	cutoff := start.Add(-s.retention)

	deleted, err := s.store.PurgeProcessedOlderThan(ctx, cutoff)
	elapsed := s.now().Sub(start)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordPurgeError()
		}
		return Result{Elapsed: elapsed}, fmt.Errorf("purge processed events: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordPurge(deleted, elapsed)
	}
	s.logger.InfoContext(ctx, "ledger_purge_completed",
		"deleted", deleted,
		"cutoff", cutoff,
		"elapsed_ms", elapsed.Milliseconds(),
	)
	return Result{Deleted: deleted, Elapsed: elapsed}, nil
}
