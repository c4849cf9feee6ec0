package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Event is the validated shape of an inbound alert webhook.
//
// The upstream payload carries no dedicated event ID field, so EventID is the
// upstream `id` when present and otherwise derived deterministically from
// (event, alert_id, triggered_at). A retried delivery of the same alert
// always produces the same ID, which is what the ledger keys on.
type Event struct {
	ID        string
	Type      string
	Timestamp time.Time
	Data      AlertData

	// Raw is the exact request body, kept for the ledger payload column.
	Raw json.RawMessage
}

// AlertData is the alert-specific section of the payload.
type AlertData struct {
	AlertID      string          `json:"alert_id"`
	Symbol       string          `json:"symbol"`
	Condition    string          `json:"condition"`
	Threshold    *float64        `json:"threshold"`
	CurrentValue float64         `json:"current_value"`
	TriggeredAt  string          `json:"triggered_at"`
	Parameters   json.RawMessage `json:"parameters"`
}

type wireEvent struct {
	ID        string    `json:"id"`
	Event     string    `json:"event"`
	Timestamp string    `json:"timestamp"`
	Data      AlertData `json:"data"`
}

// ParseEvent validates the raw body against the webhook schema. Validation
// failures carry field detail for the 400 response body; they never panic on
// arbitrary input.
func ParseEvent(raw []byte) (*Event, error) {
	var wire wireEvent
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	if strings.TrimSpace(wire.Event) == "" {
		return nil, fmt.Errorf("field %q is required", "event")
	}
	if strings.TrimSpace(wire.Timestamp) == "" {
		return nil, fmt.Errorf("field %q is required", "timestamp")
	}
	ts, err := time.Parse(time.RFC3339, wire.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("field %q must be an ISO-8601 timestamp: %w", "timestamp", err)
	}
	if strings.TrimSpace(wire.Data.AlertID) == "" {
		return nil, fmt.Errorf("field %q is required", "data.alert_id")
	}
	if strings.TrimSpace(wire.Data.Symbol) == "" {
		return nil, fmt.Errorf("field %q is required", "data.symbol")
	}
	if strings.TrimSpace(wire.Data.TriggeredAt) == "" {
		return nil, fmt.Errorf("field %q is required", "data.triggered_at")
	}
	if _, err := time.Parse(time.RFC3339, wire.Data.TriggeredAt); err != nil {
		return nil, fmt.Errorf("field %q must be an ISO-8601 timestamp: %w", "data.triggered_at", err)
	}

	id := wire.ID
	if id == "" {
		id = fmt.Sprintf("%s:%s:%s", wire.Event, wire.Data.AlertID, wire.Data.TriggeredAt)
	}

	return &Event{
		ID:        id,
		Type:      wire.Event,
		Timestamp: ts,
		Data:      wire.Data,
		Raw:       json.RawMessage(raw),
	}, nil
}
