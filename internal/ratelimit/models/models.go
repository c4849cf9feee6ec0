package models

import (
	"fmt"
	"strings"
	"time"
)

// Scope identifies an independent rate limit counter family.
type Scope string

const (
	// ScopeCommand limits slash command invocations per (team, user).
	ScopeCommand Scope = "command"
	// ScopeOAuth limits OAuth callback attempts per source IP.
	ScopeOAuth Scope = "oauth"
	// ScopeWebhook limits inbound webhook deliveries per team.
	ScopeWebhook Scope = "webhook"
)

func (s Scope) IsValid() bool {
	switch s {
	case ScopeCommand, ScopeOAuth, ScopeWebhook:
		return true
	}
	return false
}

func (s Scope) String() string {
	return string(s)
}

// Result is the outcome of a single rate limit check.
type Result struct {
	Allowed    bool      `json:"allowed"`
	Limit      int       `json:"limit"`
	Remaining  int       `json:"remaining"`
	ResetAt    time.Time `json:"reset_at"`
	RetryAfter int       `json:"retry_after,omitempty"` // seconds, only set when not allowed
}

// Key is a value object encapsulating rate limit bucket key construction.
// It centralizes key format and sanitization so user-controlled identifiers
// containing delimiter characters cannot manipulate adjacent buckets.
type Key struct {
	scope      Scope
	identifier string
}

// NewKey creates a rate limit key for the given scope and identifier.
// Composite identifiers (e.g. team+user for the command scope) should be
// built with CompositeIdentifier so each part is sanitized independently.
func NewKey(scope Scope, identifier string) Key {
	return Key{
		scope:      scope,
		identifier: sanitizeKeySegment(identifier),
	}
}

// CompositeIdentifier joins identifier parts with each part sanitized, so
// ("T1:x", "y") and ("T1", "x:y") produce distinct identifiers.
func CompositeIdentifier(parts ...string) string {
	sanitized := make([]string, len(parts))
	for i, p := range parts {
		sanitized[i] = sanitizeKeySegment(p)
	}
	return strings.Join(sanitized, ":")
}

// String returns the formatted key for storage lookup.
func (k Key) String() string {
	return fmt.Sprintf("ratelimit:%s:%s", k.scope, k.identifier)
}

// sanitizeKeySegment escapes delimiter characters in key segments.
// Order matters: escape the escape character first, then the delimiter, so
// no two distinct inputs produce the same sanitized output.
func sanitizeKeySegment(s string) string {
	s = strings.ReplaceAll(s, "_", "__")
	s = strings.ReplaceAll(s, ":", "_c")
	return s
}
