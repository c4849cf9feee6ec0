// Package cache provides the two-tier tenant cache: a cheap in-process tier
// backed by a shared Redis tier, composed behind a read-through API.
//
// The cache is never authoritative. Writes go to the durable store first;
// tiers are populated only as a side effect of reads or successful writes
// and are allowed to be briefly stale within their TTL. Explicit Delete on
// the mutation paths bounds staleness to near-zero.
package cache

import (
	"context"
	"strings"
	"time"
)

// Tier is a single cache level. Implementations must be safe for concurrent use.
type Tier interface {
	// Get returns the value for key, or ok=false on a miss.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)

	// Set stores value under key with an absolute expiry of now+ttl.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}

// Loader fetches the authoritative value on a full cache miss.
type Loader func(ctx context.Context) ([]byte, error)

// Key builds a namespaced cache key. Namespaces keep blanket invalidation of
// one record family from ever touching another; segments are joined with ':'
// and any ':' inside a segment is escaped so distinct inputs cannot collide.
func Key(namespace string, parts ...string) string {
	var b strings.Builder
	b.WriteString(namespace)
	for _, p := range parts {
		b.WriteByte(':')
		b.WriteString(escapeSegment(p))
	}
	return b.String()
}

// escapeSegment escapes delimiter characters in key segments.
// Order matters: escape the escape character first.
func escapeSegment(s string) string {
	s = strings.ReplaceAll(s, "_", "__")
	s = strings.ReplaceAll(s, ":", "_c")
	return s
}
