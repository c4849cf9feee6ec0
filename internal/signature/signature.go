// Package signature authenticates inbound webhook and slash command requests.
//
// Webhook deliveries carry an HMAC-SHA256 digest of the exact raw request
// body, keyed by the tenant's webhook secret, presented either as bare
// lowercase hex or with a "sha256=" prefix. Slash commands use Slack's
// v0 signing scheme over "v0:<timestamp>:<body>" with a replay window.
//
// Every failure mode collapses to false. The verifier never tells the
// caller why verification failed.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// Scheme prefixes recognized on inbound signature headers. The prefix is
// matched exactly; there is no trial-and-error across algorithms.
const (
	webhookPrefix = "sha256="
	commandPrefix = "v0="
)

// CommandTolerance is the maximum clock skew accepted on slash command
// timestamps before the request is rejected as a replay.
const CommandTolerance = 5 * time.Minute

// Sign computes the lowercase hex HMAC-SHA256 digest of body keyed by secret.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks an HMAC-SHA256 webhook signature over the raw request body.
// The header may be a bare hex digest or carry the "sha256=" prefix.
// Returns false for a missing header, malformed hex, a digest of the wrong
// length, or a mismatch; it never panics on attacker-controlled input.
func Verify(body []byte, header, secret string) bool {
	if header == "" || secret == "" {
		return false
	}
	candidate := strings.TrimPrefix(header, webhookPrefix)

	decoded, err := hex.DecodeString(candidate)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := mac.Sum(nil)

	// hmac.Equal is constant-time; it also handles the length check, but
	// rejecting early on length keeps the contract explicit: a digest of
	// the wrong size can never match.
	if len(decoded) != len(expected) {
		return false
	}
	return hmac.Equal(decoded, expected)
}

// SignCommand computes the Slack-style v0 signature for a timestamped body.
func SignCommand(signingSecret, timestampHeader string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(signingSecret))
	mac.Write([]byte("v0:" + timestampHeader + ":"))
	mac.Write(body)
	return commandPrefix + hex.EncodeToString(mac.Sum(nil))
}

// VerifyCommand checks a Slack-style v0 request signature with a replay guard.
// The timestamp header is compared against now before any hashing so stale
// replays are rejected cheaply; the tolerance window is CommandTolerance in
// either direction.
func VerifyCommand(signingSecret, timestampHeader string, body []byte, header string, now time.Time) bool {
	if signingSecret == "" || timestampHeader == "" || header == "" {
		return false
	}

	ts, err := strconv.ParseInt(timestampHeader, 10, 64)
	if err != nil {
		return false
	}
	skew := now.Sub(time.Unix(ts, 0))
	if skew > CommandTolerance || skew < -CommandTolerance {
		return false
	}

	if !strings.HasPrefix(header, commandPrefix) {
		return false
	}
	candidate, err := hex.DecodeString(strings.TrimPrefix(header, commandPrefix))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(signingSecret))
	mac.Write([]byte("v0:" + timestampHeader + ":"))
	mac.Write(body)
	expected := mac.Sum(nil)

	if len(candidate) != len(expected) {
		return false
	}
	return hmac.Equal(candidate, expected)
}
