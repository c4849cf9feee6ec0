// Package service orchestrates webhook intake: rate limiting, tenant
// resolution, signature verification, schema validation, idempotent ledger
// intake, and delivery.
//
// Stage order is deliberate. The rate limiter runs first so a flood never
// reaches HMAC computation. Tenant resolution comes before verification
// because the webhook secret is tenant-scoped; an unknown or unconfigured
// tenant is answered without touching the verifier. Nothing is durably
// recorded before the signature checks out, and the ledger insert happens
// before delivery so an upstream retry after a crash or delivery failure
// short-circuits as a duplicate instead of double-posting.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/stockalert-pro/stockalert-slack-app/internal/ingest/metrics"
	"github.com/stockalert-pro/stockalert-slack-app/internal/ingest/models"
	"github.com/stockalert-pro/stockalert-slack-app/internal/ingest/ports"
	"github.com/stockalert-pro/stockalert-slack-app/internal/ingest/tracer"
	ledgermodels "github.com/stockalert-pro/stockalert-slack-app/internal/ledger/models"
	rlmodels "github.com/stockalert-pro/stockalert-slack-app/internal/ratelimit/models"
	"github.com/stockalert-pro/stockalert-slack-app/internal/signature"
	tenantmodels "github.com/stockalert-pro/stockalert-slack-app/internal/tenant/models"
	dErrors "github.com/stockalert-pro/stockalert-slack-app/pkg/domainerrors"
)

// RateLimiter gates the webhook scope.
type RateLimiter interface {
	Check(ctx context.Context, scope rlmodels.Scope, identifier string) *rlmodels.Result
}

// TenantResolver resolves cached workspace state.
type TenantResolver interface {
	ResolveInstallation(ctx context.Context, teamID string) (*tenantmodels.Installation, error)
	ResolveDefaultChannel(ctx context.Context, teamID string) (*tenantmodels.ChannelBinding, error)
}

// Ledger is the idempotency record of inbound events.
type Ledger interface {
	RecordIfNew(ctx context.Context, event *ledgermodels.InboundEvent) (*ledgermodels.InboundEvent, error)
	MarkProcessed(ctx context.Context, eventID string, processedAt time.Time) error
}

// Status is the terminal state of one webhook request.
type Status string

const (
	StatusDelivered       Status = "delivered"
	StatusDuplicate       Status = "duplicate"
	StatusRateLimited     Status = "rate_limited"
	StatusUnauthenticated Status = "unauthenticated"
	StatusInvalid         Status = "invalid"
	StatusUnknownTenant   Status = "not_found"
	StatusNotConfigured   Status = "not_configured"
	StatusFailed          Status = "failed"
)

// Outcome is what the transport layer maps to a response. Err is a coded
// domain error for every non-success status; RateLimit carries the window
// state for 429 headers.
type Outcome struct {
	Status    Status
	Duplicate bool
	RateLimit *rlmodels.Result
	Err       error
}

// Service runs the ingestion pipeline.
type Service struct {
	limiter  RateLimiter
	tenants  TenantResolver
	ledger   Ledger
	renderer ports.Renderer
	deliver  ports.Deliverer

	dependencyTimeout time.Duration
	deliveryTimeout   time.Duration

	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  tracer.Tracer
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

// WithTracer sets the tracer for pipeline spans.
func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithTimeouts overrides the per-dependency and delivery timeouts when
// greater than zero.
func WithTimeouts(dependency, delivery time.Duration) Option {
	return func(s *Service) {
		if dependency > 0 {
			s.dependencyTimeout = dependency
		}
		if delivery > 0 {
			s.deliveryTimeout = delivery
		}
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

// New creates the ingestion pipeline service.
func New(limiter RateLimiter, tenants TenantResolver, ledger Ledger, renderer ports.Renderer, deliver ports.Deliverer, opts ...Option) (*Service, error) {
	if limiter == nil || tenants == nil || ledger == nil || renderer == nil || deliver == nil {
		return nil, errors.New("limiter, tenants, ledger, renderer, and deliverer are required")
	}
	svc := &Service{
		limiter:           limiter,
		tenants:           tenants,
		ledger:            ledger,
		renderer:          renderer,
		deliver:           deliver,
		dependencyTimeout: 5 * time.Second,
		deliveryTimeout:   10 * time.Second,
		logger:            slog.Default(),
		tracer:            tracer.NewNoop(),
		now:               time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// HandleWebhook runs one inbound event through the pipeline state machine.
func (s *Service) HandleWebhook(ctx context.Context, teamID string, body []byte, sigHeader string) Outcome {
	start := s.now()
	ctx, span := s.tracer.Start(ctx, tracer.SpanWebhook,
		tracer.String(tracer.AttrTeamID, teamID),
	)

	outcome := s.handleWebhook(ctx, span, teamID, body, sigHeader)

	span.SetAttributes(
		tracer.String(tracer.AttrOutcome, string(outcome.Status)),
		tracer.Bool(tracer.AttrDuplicate, outcome.Duplicate),
	)
	span.End(outcome.Err)

	if s.metrics != nil {
		s.metrics.RecordOutcome(string(outcome.Status))
		s.metrics.RecordDuration(s.now().Sub(start))
	}
	return outcome
}

func (s *Service) handleWebhook(ctx context.Context, span tracer.Span, teamID string, body []byte, sigHeader string) Outcome {
	// Stage 1: rate limit before any CPU is spent on the body.
	limit := s.limiter.Check(ctx, rlmodels.ScopeWebhook, teamID)
	if !limit.Allowed {
		span.AddEvent(tracer.EventRateLimited)
		s.logger.InfoContext(ctx, "webhook_rate_limit_exceeded", "team_id", teamID)
		return Outcome{
			Status:    StatusRateLimited,
			RateLimit: limit,
			Err:       dErrors.New(dErrors.CodeRateLimited, "webhook rate limit exceeded"),
		}
	}

	// Stage 2: resolve the tenant. The webhook secret is tenant-scoped, so
	// verification cannot run before this lookup.
	depCtx, cancel := context.WithTimeout(ctx, s.dependencyTimeout)
	inst, err := s.tenants.ResolveInstallation(depCtx, teamID)
	cancel()
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return Outcome{Status: StatusUnknownTenant, Err: err}
		}
		return Outcome{
			Status: StatusFailed,
			Err:    dErrors.Wrap(err, dErrors.CodeInternal, "resolve tenant"),
		}
	}
	if inst.WebhookSecret == "" {
		return Outcome{
			Status: StatusNotConfigured,
			Err:    dErrors.New(dErrors.CodeNotConfigured, "workspace has no webhook secret configured"),
		}
	}
	span.AddEvent(tracer.EventTenantResolved)

	// Stage 3: authenticate the raw bytes. Nothing is recorded for an
	// unverified event.
	if !signature.Verify(body, sigHeader, inst.WebhookSecret) {
		s.logger.WarnContext(ctx, "webhook_signature_rejected", "team_id", teamID)
		return Outcome{
			Status: StatusUnauthenticated,
			Err:    dErrors.New(dErrors.CodeUnauthenticated, "invalid webhook signature"),
		}
	}
	span.AddEvent(tracer.EventVerified)

	// Stage 4: schema validation, only on authenticated bytes.
	event, err := models.ParseEvent(body)
	if err != nil {
		return Outcome{
			Status: StatusInvalid,
			Err:    dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid event payload"),
		}
	}
	span.SetAttributes(
		tracer.String(tracer.AttrEventID, event.ID),
		tracer.String(tracer.AttrEventType, event.Type),
	)

	// Stage 5: idempotent intake. First writer wins; everyone else
	// short-circuits as a duplicate success.
	entry, err := ledgermodels.NewInboundEvent(event.ID, teamID, event.Type, event.Raw, s.now())
	if err != nil {
		return Outcome{
			Status: StatusInvalid,
			Err:    dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid event identity"),
		}
	}
	depCtx, cancel = context.WithTimeout(ctx, s.dependencyTimeout)
	recorded, err := s.ledger.RecordIfNew(depCtx, entry)
	cancel()
	if err != nil {
		// The ledger is not allowed to degrade; without it every retry
		// would double-deliver.
		return Outcome{
			Status: StatusFailed,
			Err:    dErrors.Wrap(err, dErrors.CodeUnavailable, "record inbound event"),
		}
	}
	if recorded == nil {
		s.logger.InfoContext(ctx, "webhook_duplicate_event",
			"team_id", teamID,
			"event_id", event.ID,
		)
		return Outcome{Status: StatusDuplicate, Duplicate: true}
	}
	span.AddEvent(tracer.EventRecorded)

	// Stage 6: resolve the destination and deliver. Failures from here on
	// leave the event recorded-but-unprocessed, which is what makes the
	// upstream's retry safe.
	depCtx, cancel = context.WithTimeout(ctx, s.dependencyTimeout)
	binding, err := s.tenants.ResolveDefaultChannel(depCtx, teamID)
	cancel()
	if err != nil {
		// A missing default is discovered after the ledger insert, so it is
		// a delivery failure, not the 503 reserved for an unconfigured
		// tenant. Recode forces the outer code past the resolver's own.
		if dErrors.HasCode(err, dErrors.CodeNotConfigured) {
			err = dErrors.Recode(err, dErrors.CodeDeliveryFailed, "no destination configured")
		} else {
			err = dErrors.Recode(err, dErrors.CodeDeliveryFailed, "resolve destination channel")
		}
		s.logger.ErrorContext(ctx, "webhook_delivery_failed",
			"team_id", teamID,
			"event_id", event.ID,
			"error", err,
		)
		return Outcome{Status: StatusFailed, Err: err}
	}

	msg := s.renderer.Render(event)
	deliverCtx, cancel := context.WithTimeout(ctx, s.deliveryTimeout)
	err = s.deliver.PostMessage(deliverCtx, inst.BotToken, binding.ChannelID, msg)
	cancel()
	if err != nil {
		s.logger.ErrorContext(ctx, "webhook_delivery_failed",
			"team_id", teamID,
			"event_id", event.ID,
			"channel_id", binding.ChannelID,
			"error", err,
		)
		return Outcome{
			Status: StatusFailed,
			Err:    dErrors.Recode(err, dErrors.CodeDeliveryFailed, "post message"),
		}
	}
	span.AddEvent(tracer.EventDelivered)

	// Stage 7: stamp the ledger. Delivery already happened, so a failure
	// here is logged rather than surfaced; returning an error would only
	// trigger a retry that dedups anyway.
	depCtx, cancel = context.WithTimeout(ctx, s.dependencyTimeout)
	err = s.ledger.MarkProcessed(depCtx, event.ID, s.now())
	cancel()
	if err != nil {
		s.logger.ErrorContext(ctx, "webhook_mark_processed_failed",
			"event_id", event.ID,
			"error", err,
		)
	}

	s.logger.InfoContext(ctx, "webhook_delivered",
		"team_id", teamID,
		"event_id", event.ID,
		"channel_id", binding.ChannelID,
	)
	return Outcome{Status: StatusDelivered}
}
