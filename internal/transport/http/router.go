package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stockalert-pro/stockalert-slack-app/internal/platform/health"
	"github.com/stockalert-pro/stockalert-slack-app/internal/platform/middleware"
	rlmiddleware "github.com/stockalert-pro/stockalert-slack-app/internal/ratelimit/middleware"
	rlmodels "github.com/stockalert-pro/stockalert-slack-app/internal/ratelimit/models"
)

// RouterConfig carries the transport-level knobs the router needs.
type RouterConfig struct {
	RequestTimeout time.Duration
}

// NewRouter wires all public endpoints with the platform middleware stack.
// The webhook scope is checked inside the pipeline (it needs pipeline-owned
// ordering); the OAuth scope is enforced here per source IP.
func NewRouter(h *Handler, healthHandler *health.Handler, rateLimit *rlmiddleware.Middleware, logger *slog.Logger, cfg RouterConfig) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()

	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.ClientIP)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.BodyLimit(maxBodyBytes))
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	r.Post("/webhooks/stockalert/{teamID}", h.handleWebhook)
	r.Post("/slack/commands", h.handleCommand)

	r.Group(func(r chi.Router) {
		r.Use(rateLimit.Limit(rlmodels.ScopeOAuth, rlmiddleware.ClientIPIdentifier))
		r.Post("/slack/oauth/callback", h.handleOAuthCallback)
		r.Get("/slack/oauth/callback", h.handleOAuthCallback)
	})

	healthHandler.Register(r)
	r.Handle("/metrics", promhttp.Handler())

	return r
}
