// Package tracer provides a lightweight tracing abstraction for the
// ingestion pipeline.
//
// The pipeline emits one span per webhook with events marking each stage
// (rate limit, tenant resolution, verification, ledger, delivery) so a slow
// or failing delivery can be attributed to a stage without log archaeology.
// The interface keeps OpenTelemetry out of the pipeline's own signatures.
//
// Implementations:
//   - NoopTracer: for tests (zero overhead)
//   - OTelTracer: OpenTelemetry adapter for production
package tracer

import (
	"context"
	"time"
)

// Span represents an active trace span.
type Span interface {
	// End completes the span, recording any error that occurred.
	// End must be called exactly once, typically via defer.
	End(err error)

	// SetAttributes adds key-value pairs to the span.
	SetAttributes(attrs ...Attribute)

	// AddEvent records a timestamped event within the span.
	AddEvent(name string, attrs ...Attribute)
}

// Tracer creates spans. Implementations must be safe for concurrent use.
type Tracer interface {
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

// Attribute represents a key-value pair attached to spans.
type Attribute struct {
	Key   string
	Value any
}

// String creates a string attribute.
func String(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

// Bool creates a boolean attribute.
func Bool(key string, value bool) Attribute {
	return Attribute{Key: key, Value: value}
}

// Int64 creates an int64 attribute.
func Int64(key string, value int64) Attribute {
	return Attribute{Key: key, Value: value}
}

// Duration creates a duration attribute in milliseconds.
func Duration(key string, value time.Duration) Attribute {
	return Attribute{Key: key, Value: value.Milliseconds()}
}

// Span names used by the ingestion pipeline.
const (
	SpanWebhook = "ingest.webhook"
)

// Attribute keys used by the ingestion pipeline.
const (
	AttrTeamID    = "team_id"
	AttrEventID   = "event_id"
	AttrEventType = "event_type"
	AttrOutcome   = "outcome"
	AttrDuplicate = "duplicate"
)

// Event names marking pipeline stages.
const (
	EventRateLimited    = "stage.rate_limited"
	EventTenantResolved = "stage.tenant_resolved"
	EventVerified       = "stage.verified"
	EventRecorded       = "stage.recorded"
	EventDelivered      = "stage.delivered"
)
