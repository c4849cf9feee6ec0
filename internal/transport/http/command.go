package httptransport

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	rlmiddleware "github.com/stockalert-pro/stockalert-slack-app/internal/ratelimit/middleware"
	rlmodels "github.com/stockalert-pro/stockalert-slack-app/internal/ratelimit/models"
	"github.com/stockalert-pro/stockalert-slack-app/internal/signature"
	slackadapter "github.com/stockalert-pro/stockalert-slack-app/internal/slack"
	"github.com/stockalert-pro/stockalert-slack-app/internal/transport/httputil"
	dErrors "github.com/stockalert-pro/stockalert-slack-app/pkg/domainerrors"
)

const (
	slackSignatureHeader = "X-Slack-Signature"
	slackTimestampHeader = "X-Slack-Request-Timestamp"
)

type commandResponse struct {
	ResponseType string `json:"response_type"`
	Text         string `json:"text"`
}

func ephemeral(text string) commandResponse {
	return commandResponse{ResponseType: "ephemeral", Text: text}
}

// handleCommand serves the /stockalert slash command. Verification runs
// over the exact raw bytes before the form is decoded; the rate limit check
// runs after, because its identifier is the (team, user) pair inside the
// payload.
func (h *Handler) handleCommand(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "request body too large"))
		return
	}

	if !signature.VerifyCommand(
		h.signingSecret,
		r.Header.Get(slackTimestampHeader),
		body,
		r.Header.Get(slackSignatureHeader),
		h.now(),
	) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthenticated, "invalid command signature"))
		return
	}

	cmd, err := slackadapter.ParseCommand(body)
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInvalidInput, "malformed command payload"))
		return
	}

	limit := h.limiter.Check(r.Context(),
		rlmodels.ScopeCommand,
		rlmodels.CompositeIdentifier(cmd.TeamID, cmd.UserID),
	)
	rlmiddleware.SetHeaders(w, limit)
	if !limit.Allowed {
		rlmiddleware.WriteExceeded(w, limit)
		return
	}

	switch cmd.Subcommand() {
	case "status":
		h.commandStatus(w, r, cmd)
	case "channel":
		h.commandChannel(w, r, cmd)
	case "disconnect":
		h.commandDisconnect(w, r, cmd)
	default:
		httputil.WriteJSON(w, http.StatusOK, ephemeral(
			"Usage: `/stockalert status` | `/stockalert channel` | `/stockalert disconnect`"))
	}
}

func (h *Handler) commandStatus(w http.ResponseWriter, r *http.Request, cmd *slackadapter.Command) {
	inst, err := h.tenants.ResolveInstallation(r.Context(), cmd.TeamID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			httputil.WriteJSON(w, http.StatusOK, ephemeral("StockAlert is not installed in this workspace."))
			return
		}
		httputil.WriteError(w, err)
		return
	}

	var b strings.Builder
	if inst.Connected() {
		b.WriteString("StockAlert integration: *connected*\n")
	} else {
		b.WriteString("StockAlert integration: *not connected*\n")
	}

	binding, err := h.tenants.ResolveDefaultChannel(r.Context(), cmd.TeamID)
	switch {
	case err == nil:
		fmt.Fprintf(&b, "Alerts are delivered to <#%s>.", binding.ChannelID)
	case dErrors.HasCode(err, dErrors.CodeNotConfigured):
		b.WriteString("No default channel set. Run `/stockalert channel` in the channel alerts should go to.")
	default:
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, ephemeral(b.String()))
}

func (h *Handler) commandChannel(w http.ResponseWriter, r *http.Request, cmd *slackadapter.Command) {
	if err := h.tenants.SetDefaultChannel(r.Context(), cmd.TeamID, cmd.ChannelID, cmd.ChannelName); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ephemeral(
		fmt.Sprintf("Alerts will now be delivered to <#%s>.", cmd.ChannelID)))
}

func (h *Handler) commandDisconnect(w http.ResponseWriter, r *http.Request, cmd *slackadapter.Command) {
	if err := h.tenants.Disconnect(r.Context(), cmd.TeamID); err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			httputil.WriteJSON(w, http.StatusOK, ephemeral("StockAlert is not installed in this workspace."))
			return
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ephemeral(
		"StockAlert integration disconnected. Alerts will stop until you reconnect."))
}
