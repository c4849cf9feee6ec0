// Package httptransport is the thin HTTP layer. Handlers delegate to the
// ingestion pipeline and tenant service; no business logic lives here.
package httptransport

import (
	"context"
	"log/slog"
	"time"

	"github.com/stockalert-pro/stockalert-slack-app/internal/ingest/ports"
	ingestservice "github.com/stockalert-pro/stockalert-slack-app/internal/ingest/service"
	rlmodels "github.com/stockalert-pro/stockalert-slack-app/internal/ratelimit/models"
	tenantservice "github.com/stockalert-pro/stockalert-slack-app/internal/tenant/service"
)

// maxBodyBytes caps inbound request bodies. Alert payloads are small; a
// megabyte is already generous.
const maxBodyBytes = 1 << 20

// RateLimiter is the check the command handler runs after parsing the form,
// when the (team, user) identity is known.
type RateLimiter interface {
	Check(ctx context.Context, scope rlmodels.Scope, identifier string) *rlmodels.Result
}

// Handler holds the dependencies for all public endpoints.
type Handler struct {
	ingest        *ingestservice.Service
	tenants       *tenantservice.Service
	limiter       RateLimiter
	exchanger     ports.OAuthExchanger
	signingSecret string
	logger        *slog.Logger
	now           func() time.Time
}

// HandlerOption configures the Handler.
type HandlerOption func(*Handler)

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) HandlerOption {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

// NewHandler constructs the HTTP handler set.
func NewHandler(
	ingest *ingestservice.Service,
	tenants *tenantservice.Service,
	limiter RateLimiter,
	exchanger ports.OAuthExchanger,
	signingSecret string,
	logger *slog.Logger,
	opts ...HandlerOption,
) *Handler {
	h := &Handler{
		ingest:        ingest,
		tenants:       tenants,
		limiter:       limiter,
		exchanger:     exchanger,
		signingSecret: signingSecret,
		logger:        logger,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}
