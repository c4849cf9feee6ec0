// Package service enforces per-scope sliding window rate limits.
//
// This is the gate in front of the command, OAuth, and webhook endpoints.
// Each scope carries its own limit and window; identifiers are caller-built
// (team, team+user, or source IP).
//
// Usage:
//
//	svc, _ := service.New(store, scopes)
//	result := svc.Check(ctx, models.ScopeWebhook, teamID)
//	if !result.Allowed {
//	    // Return 429 Too Many Requests
//	}
//
// The service fails open: if the backing store is unreachable the request is
// admitted with the full limit reported, the failure is logged and counted,
// and traffic keeps flowing. An infrastructure outage must not become a
// total outage of the endpoints it protects.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/stockalert-pro/stockalert-slack-app/internal/ratelimit/metrics"
	"github.com/stockalert-pro/stockalert-slack-app/internal/ratelimit/models"
)

// WindowStore checks rate limits using sliding window counters.
type WindowStore interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.Result, error)
}

// ScopeConfig holds the limit and window for one scope.
type ScopeConfig struct {
	Limit  int
	Window time.Duration
}

// Service enforces per-scope rate limits. Thread-safe for concurrent use by
// HTTP middleware and the ingestion pipeline.
type Service struct {
	store   WindowStore
	scopes  map[models.Scope]ScopeConfig
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a Service instance.
type Option func(*Service)

// WithLogger sets the structured logger for degradation and rejection events.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder for observability.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New creates a rate limiting service with the given store and scope table.
func New(store WindowStore, scopes map[models.Scope]ScopeConfig, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("window store is required")
	}
	if len(scopes) == 0 {
		return nil, errors.New("at least one scope must be configured")
	}

	svc := &Service{
		store:  store,
		scopes: scopes,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Check runs the sliding window check for (scope, identifier).
// A scope with no configured limits denies by default; a store failure
// admits by default. Check never returns an error: both degradations are
// resolved here so callers only branch on Result.Allowed.
func (s *Service) Check(ctx context.Context, scope models.Scope, identifier string) *models.Result {
	if s.metrics != nil {
		s.metrics.RecordCheck(scope.String())
	}

	cfg, ok := s.scopes[scope]
	if !ok {
		// Default-deny: an unconfigured scope is a wiring bug, not an
		// invitation to unlimited traffic.
		s.logger.Error("rate_limit_scope_missing", "scope", scope)
		return &models.Result{
			Allowed:    false,
			Limit:      0,
			Remaining:  0,
			ResetAt:    time.Now().Add(time.Minute),
			RetryAfter: 60,
		}
	}

	key := models.NewKey(scope, identifier)
	result, err := s.store.Allow(ctx, key.String(), cfg.Limit, cfg.Window)
	if err != nil {
		// Fail open: silent to the caller's control flow, loud in telemetry.
		if s.metrics != nil {
			s.metrics.RecordStoreError()
		}
		s.logger.Warn("rate_limit_store_unavailable",
			"scope", scope,
			"error", err,
		)
		return &models.Result{
			Allowed:   true,
			Limit:     cfg.Limit,
			Remaining: cfg.Limit,
			ResetAt:   time.Now().Add(cfg.Window),
		}
	}

	if !result.Allowed {
		if s.metrics != nil {
			s.metrics.RecordRejection(scope.String())
		}
		s.logger.Info("rate_limit_exceeded",
			"scope", scope,
			"limit", cfg.Limit,
			"window_seconds", int(cfg.Window.Seconds()),
		)
	}
	return result
}
