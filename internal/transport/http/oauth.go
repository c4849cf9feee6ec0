package httptransport

import (
	"net/http"

	platformMW "github.com/stockalert-pro/stockalert-slack-app/internal/platform/middleware"
	"github.com/stockalert-pro/stockalert-slack-app/internal/platform/privacy"
	"github.com/stockalert-pro/stockalert-slack-app/internal/tenant/models"
	"github.com/stockalert-pro/stockalert-slack-app/internal/transport/httputil"
	dErrors "github.com/stockalert-pro/stockalert-slack-app/pkg/domainerrors"
)

// handleOAuthCallback finishes the workspace authorization. The handshake
// itself (scopes, redirect) lives with Slack; this endpoint only exchanges
// the code and persists the installation. Rate limiting per source IP is
// applied by middleware in the router.
func (h *Handler) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	if errParam := r.URL.Query().Get("error"); errParam != "" {
		// The user cancelled the install dialog. Not an attack, not a bug.
		h.logger.InfoContext(r.Context(), "oauth_authorization_denied",
			"reason", errParam,
			"ip_prefix", privacy.AnonymizeIP(platformMW.GetClientIP(r.Context())),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "authorization was denied"))
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "missing authorization code"))
		return
	}

	result, err := h.exchanger.Exchange(r.Context(), code)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "oauth_exchange_failed",
			"error", err,
			"ip_prefix", privacy.AnonymizeIP(platformMW.GetClientIP(r.Context())),
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeUnauthenticated, "code exchange failed"))
		return
	}

	// A repeat install refreshes Slack credentials without touching the
	// StockAlert integration fields.
	inst, err := h.tenants.ResolveInstallation(r.Context(), result.TeamID)
	switch {
	case err == nil:
		if err := inst.Reauthorize(result.TeamName, result.BotToken, h.now()); err != nil {
			httputil.WriteError(w, err)
			return
		}
	case dErrors.HasCode(err, dErrors.CodeNotFound):
		inst, err = models.NewInstallation(result.TeamID, result.TeamName, result.BotToken, h.now())
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
	default:
		httputil.WriteError(w, err)
		return
	}
	if err := h.tenants.SaveInstallation(r.Context(), inst); err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(r.Context(), "workspace_installed", "team_id", result.TeamID)
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"team_id": result.TeamID,
	})
}
