package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	platformMW "github.com/stockalert-pro/stockalert-slack-app/internal/platform/middleware"
	"github.com/stockalert-pro/stockalert-slack-app/internal/ratelimit/models"
	"github.com/stockalert-pro/stockalert-slack-app/internal/transport/httputil"
)

// Checker runs a rate limit check for a scope and identifier. The check
// never errors; degraded stores resolve to an allowed result internally.
type Checker interface {
	Check(ctx context.Context, scope models.Scope, identifier string) *models.Result
}

// IdentifierFunc extracts the bucket identifier for a request, e.g. the
// client IP for the OAuth scope.
type IdentifierFunc func(r *http.Request) string

// ClientIPIdentifier buckets requests by source IP. Requires the platform
// ClientIP middleware earlier in the chain.
func ClientIPIdentifier(r *http.Request) string {
	return platformMW.GetClientIP(r.Context())
}

type Middleware struct {
	checker Checker
	logger  *slog.Logger
}

func New(checker Checker, logger *slog.Logger) *Middleware {
	return &Middleware{
		checker: checker,
		logger:  logger,
	}
}

// Limit returns middleware enforcing the given scope, bucketed by the
// identifier the IdentifierFunc extracts from each request.
func (m *Middleware) Limit(scope models.Scope, identify IdentifierFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			result := m.checker.Check(r.Context(), scope, identify(r))

			// Headers go on every response, allowed or not, so clients
			// can pace themselves before hitting the limit.
			SetHeaders(w, result)

			if !result.Allowed {
				WriteExceeded(w, result)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// SetHeaders adds X-RateLimit-* headers to the response.
func SetHeaders(w http.ResponseWriter, result *models.Result) {
	if result == nil {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

// WriteExceeded writes the 429 response for a rejected check. Exported so
// handlers that run their checks after parsing the body (slash commands,
// webhook ingestion) produce the same response shape as the middleware.
func WriteExceeded(w http.ResponseWriter, result *models.Result) {
	w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
	httputil.WriteJSON(w, http.StatusTooManyRequests, &exceededResponse{
		Error:      "rate_limit_exceeded",
		Message:    "Too many requests. Please try again later.",
		RetryAfter: result.RetryAfter,
	})
}

type exceededResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after"`
}
