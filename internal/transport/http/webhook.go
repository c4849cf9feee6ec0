package httptransport

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	ingestservice "github.com/stockalert-pro/stockalert-slack-app/internal/ingest/service"
	rlmiddleware "github.com/stockalert-pro/stockalert-slack-app/internal/ratelimit/middleware"
	"github.com/stockalert-pro/stockalert-slack-app/internal/transport/httputil"
)

// signatureHeader carries the HMAC digest of the raw body, either bare hex
// or sha256=-prefixed.
const signatureHeader = "X-StockAlert-Signature"

type webhookResponse struct {
	Success   bool `json:"success"`
	Duplicate bool `json:"duplicate,omitempty"`
}

// handleWebhook is the ingestion endpoint. The upstream sender retries any
// non-2xx forever, so everything that is not a hard protocol violation
// prefers a 200; the ledger makes those retries harmless.
func (h *Handler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	teamID := chi.URLParam(r, "teamID")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		httputil.WriteJSON(w, http.StatusRequestEntityTooLarge, map[string]string{
			"error": "request body too large",
		})
		return
	}

	outcome := h.ingest.HandleWebhook(r.Context(), teamID, body, r.Header.Get(signatureHeader))

	switch outcome.Status {
	case ingestservice.StatusDelivered:
		httputil.WriteJSON(w, http.StatusOK, webhookResponse{Success: true})
	case ingestservice.StatusDuplicate:
		httputil.WriteJSON(w, http.StatusOK, webhookResponse{Success: true, Duplicate: true})
	case ingestservice.StatusRateLimited:
		rlmiddleware.SetHeaders(w, outcome.RateLimit)
		rlmiddleware.WriteExceeded(w, outcome.RateLimit)
	default:
		httputil.WriteError(w, outcome.Err)
	}
}
