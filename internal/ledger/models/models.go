package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// InboundEvent is one row in the idempotency ledger. The event ID comes from
// the upstream provider and is the deduplication key across all workspaces.
type InboundEvent struct {
	EventID     string
	TeamID      string
	EventType   string
	Payload     json.RawMessage
	ReceivedAt  time.Time
	ProcessedAt *time.Time
}

// NewInboundEvent validates identifying fields and returns an unprocessed
// ledger entry. The payload is stored verbatim for replay and debugging.
func NewInboundEvent(eventID, teamID, eventType string, payload json.RawMessage, receivedAt time.Time) (*InboundEvent, error) {
	if strings.TrimSpace(eventID) == "" {
		return nil, fmt.Errorf("event ID is required")
	}
	if strings.TrimSpace(teamID) == "" {
		return nil, fmt.Errorf("team ID is required")
	}
	if strings.TrimSpace(eventType) == "" {
		return nil, fmt.Errorf("event type is required")
	}
	if receivedAt.IsZero() {
		return nil, fmt.Errorf("received timestamp is required")
	}
	return &InboundEvent{
		EventID:    eventID,
		TeamID:     teamID,
		EventType:  eventType,
		Payload:    payload,
		ReceivedAt: receivedAt,
	}, nil
}

// Processed reports whether delivery for this event completed.
func (e *InboundEvent) Processed() bool {
	return e.ProcessedAt != nil
}
