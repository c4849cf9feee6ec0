// Package service resolves and mutates workspace state. Reads go through the
// two-tier cache; writes land in the durable stores first and then invalidate
// both cache tiers, so staleness after a mutation is bounded by the write
// itself rather than TTL expiry.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/stockalert-pro/stockalert-slack-app/internal/cache"
	"github.com/stockalert-pro/stockalert-slack-app/internal/sentinel"
	"github.com/stockalert-pro/stockalert-slack-app/internal/tenant/metrics"
	"github.com/stockalert-pro/stockalert-slack-app/internal/tenant/models"
	channelstore "github.com/stockalert-pro/stockalert-slack-app/internal/tenant/store/channel"
	installationstore "github.com/stockalert-pro/stockalert-slack-app/internal/tenant/store/installation"
	dErrors "github.com/stockalert-pro/stockalert-slack-app/pkg/domainerrors"
)

const (
	installationNamespace = "installations"
	channelNamespace      = "channels"
)

// Service is the tenant read/write surface used by the ingestion pipeline
// and the slash command handlers.
type Service struct {
	installations installationstore.Store
	channels      channelstore.Store
	cache         *cache.Layered

	installationTTL time.Duration
	channelTTL      time.Duration

	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// Option configures a Service instance.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder.
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

// WithTTLs overrides the cache TTLs when greater than zero.
func WithTTLs(installationTTL, channelTTL time.Duration) Option {
	return func(s *Service) {
		if installationTTL > 0 {
			s.installationTTL = installationTTL
		}
		if channelTTL > 0 {
			s.channelTTL = channelTTL
		}
	}
}

// New creates the tenant service.
func New(installations installationstore.Store, channels channelstore.Store, layered *cache.Layered, opts ...Option) (*Service, error) {
	if installations == nil {
		return nil, errors.New("installation store is required")
	}
	if channels == nil {
		return nil, errors.New("channel store is required")
	}
	if layered == nil {
		return nil, errors.New("cache is required")
	}

	svc := &Service{
		installations:   installations,
		channels:        channels,
		cache:           layered,
		installationTTL: time.Hour,
		channelTTL:      10 * time.Minute,
		logger:          slog.Default(),
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// ResolveInstallation returns the installation for a team, cached. An unknown
// team surfaces as CodeNotFound so the transport can answer 404 without
// leaking whether the team ever existed.
func (s *Service) ResolveInstallation(ctx context.Context, teamID string) (*models.Installation, error) {
	if s.metrics != nil {
		s.metrics.RecordResolution("installation")
	}

	key := cache.Key(installationNamespace, teamID)
	data, err := s.cache.GetOrLoad(ctx, key, s.installationTTL, func(ctx context.Context) ([]byte, error) {
		inst, err := s.installations.FindByTeamID(ctx, teamID)
		if err != nil {
			return nil, err
		}
		return json.Marshal(inst)
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			if s.metrics != nil {
				s.metrics.RecordResolutionMiss("installation")
			}
			return nil, dErrors.New(dErrors.CodeNotFound, "workspace is not installed")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "resolve installation")
	}

	var inst models.Installation
	if err := json.Unmarshal(data, &inst); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "decode cached installation")
	}
	return &inst, nil
}

// ResolveDefaultChannel returns the team's default alert channel, cached.
// A team with no default binding surfaces as CodeNotConfigured; the alert
// has nowhere to go until an operator picks a channel.
func (s *Service) ResolveDefaultChannel(ctx context.Context, teamID string) (*models.ChannelBinding, error) {
	if s.metrics != nil {
		s.metrics.RecordResolution("channel")
	}

	key := cache.Key(channelNamespace, teamID)
	data, err := s.cache.GetOrLoad(ctx, key, s.channelTTL, func(ctx context.Context) ([]byte, error) {
		binding, err := s.channels.FindDefault(ctx, teamID)
		if err != nil {
			return nil, err
		}
		return json.Marshal(binding)
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrNoDestination) {
			if s.metrics != nil {
				s.metrics.RecordResolutionMiss("channel")
			}
			return nil, dErrors.New(dErrors.CodeNotConfigured, "no default channel configured")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "resolve default channel")
	}

	var binding models.ChannelBinding
	if err := json.Unmarshal(data, &binding); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "decode cached channel binding")
	}
	return &binding, nil
}

// SaveInstallation upserts the installation and invalidates its cache entry.
func (s *Service) SaveInstallation(ctx context.Context, inst *models.Installation) error {
	if inst == nil {
		return dErrors.New(dErrors.CodeInvalidInput, "installation is required")
	}
	if err := s.installations.Upsert(ctx, inst); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "save installation")
	}
	s.cache.Delete(ctx, cache.Key(installationNamespace, inst.TeamID))

	if s.metrics != nil {
		s.metrics.RecordWrite("installation")
	}
	s.logger.InfoContext(ctx, "installation_saved", "team_id", inst.TeamID)
	return nil
}

// Disconnect clears the team's integration credentials. The installation row
// and channel bindings stay so a reconnect restores delivery without setup.
func (s *Service) Disconnect(ctx context.Context, teamID string) error {
	if err := s.installations.Disconnect(ctx, teamID, s.now()); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "workspace is not installed")
		}
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "disconnect installation")
	}
	s.cache.Delete(ctx, cache.Key(installationNamespace, teamID))

	if s.metrics != nil {
		s.metrics.RecordDisconnect()
	}
	s.logger.InfoContext(ctx, "installation_disconnected", "team_id", teamID)
	return nil
}

// BindChannel records a channel the workspace can route alerts to.
func (s *Service) BindChannel(ctx context.Context, teamID, channelID, channelName string) (*models.ChannelBinding, error) {
	binding, err := models.NewChannelBinding(teamID, channelID, channelName, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.channels.Upsert(ctx, binding); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "bind channel")
	}
	return binding, nil
}

// SetDefaultChannel binds the channel if needed and promotes it to the
// team's delivery default, then invalidates the cached binding.
func (s *Service) SetDefaultChannel(ctx context.Context, teamID, channelID, channelName string) error {
	if _, err := s.BindChannel(ctx, teamID, channelID, channelName); err != nil {
		return err
	}
	if err := s.channels.SetDefault(ctx, teamID, channelID, s.now()); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("channel %s is not bound", channelID))
		}
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "set default channel")
	}
	s.cache.Delete(ctx, cache.Key(channelNamespace, teamID))

	if s.metrics != nil {
		s.metrics.RecordWrite("channel_default")
	}
	s.logger.InfoContext(ctx, "default_channel_set",
		"team_id", teamID,
		"channel_id", channelID,
	)
	return nil
}

// ListChannels returns every binding for a team, for the status command.
func (s *Service) ListChannels(ctx context.Context, teamID string) ([]*models.ChannelBinding, error) {
	bindings, err := s.channels.ListByTeam(ctx, teamID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "list channels")
	}
	return bindings, nil
}
