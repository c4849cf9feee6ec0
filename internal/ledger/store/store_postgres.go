package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/stockalert-pro/stockalert-slack-app/internal/ledger/models"
	"github.com/stockalert-pro/stockalert-slack-app/internal/sentinel"
)

// PostgresStore persists the event ledger in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed ledger store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// RecordIfNew relies on the unique constraint on event_id. ON CONFLICT DO
// NOTHING means the losing insert scans zero rows, which is the duplicate
// signal, so concurrent deliveries of the same event need no app-level lock.
func (s *PostgresStore) RecordIfNew(ctx context.Context, event *models.InboundEvent) (*models.InboundEvent, error) {
	if event == nil {
		return nil, fmt.Errorf("inbound event is required")
	}
	query := `
		INSERT INTO inbound_events (event_id, team_id, event_type, payload, received_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (event_id) DO NOTHING
		RETURNING event_id
	`
	var storedID string
	err := s.db.QueryRowContext(ctx, query,
		event.EventID,
		event.TeamID,
		event.EventType,
		[]byte(event.Payload),
		event.ReceivedAt,
	).Scan(&storedID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("record inbound event: %w", err)
	}
	stored := *event
	return &stored, nil
}

func (s *PostgresStore) MarkProcessed(ctx context.Context, eventID string, processedAt time.Time) error {
	query := `
		UPDATE inbound_events
		SET processed_at = $2
		WHERE event_id = $1 AND processed_at IS NULL
	`
	res, err := s.db.ExecContext(ctx, query, eventID, processedAt)
	if err != nil {
		return fmt.Errorf("mark event processed: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark event processed rows: %w", err)
	}
	if rows == 0 {
		// Either already processed (fine) or missing (caller error).
		var exists bool
		if err := s.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM inbound_events WHERE event_id = $1)`, eventID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("check event exists: %w", err)
		}
		if !exists {
			return sentinel.ErrNotFound
		}
	}
	return nil
}

func (s *PostgresStore) PurgeProcessedOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	query := `
		DELETE FROM inbound_events
		WHERE processed_at IS NOT NULL AND received_at < $1
	`
	res, err := s.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge processed events: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge processed events rows: %w", err)
	}
	return int(rows), nil
}

func (s *PostgresStore) FindByID(ctx context.Context, eventID string) (*models.InboundEvent, error) {
	query := `
		SELECT event_id, team_id, event_type, payload, received_at, processed_at
		FROM inbound_events
		WHERE event_id = $1
	`
	var event models.InboundEvent
	var payload []byte
	var processedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, query, eventID).Scan(
		&event.EventID,
		&event.TeamID,
		&event.EventType,
		&payload,
		&event.ReceivedAt,
		&processedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find inbound event: %w", err)
	}
	event.Payload = payload
	if processedAt.Valid {
		event.ProcessedAt = &processedAt.Time
	}
	return &event, nil
}
