package channel

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stockalert-pro/stockalert-slack-app/internal/sentinel"
	"github.com/stockalert-pro/stockalert-slack-app/internal/tenant/models"
)

// PostgresStore persists channel bindings in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed channel store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Upsert(ctx context.Context, binding *models.ChannelBinding) error {
	if binding == nil {
		return fmt.Errorf("channel binding is required")
	}
	query := `
		INSERT INTO channel_bindings (id, team_id, channel_id, channel_name, is_default, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (team_id, channel_id) DO UPDATE SET
			channel_name = EXCLUDED.channel_name,
			updated_at = EXCLUDED.updated_at
	`
	_, err := s.db.ExecContext(ctx, query,
		binding.ID,
		binding.TeamID,
		binding.ChannelID,
		binding.ChannelName,
		binding.IsDefault,
		binding.CreatedAt,
		binding.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert channel binding: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindDefault(ctx context.Context, teamID string) (*models.ChannelBinding, error) {
	query := `
		SELECT id, team_id, channel_id, channel_name, is_default, created_at, updated_at
		FROM channel_bindings
		WHERE team_id = $1 AND is_default
	`
	binding, err := scanBinding(s.db.QueryRowContext(ctx, query, teamID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNoDestination
		}
		return nil, fmt.Errorf("find default channel: %w", err)
	}
	return binding, nil
}

func (s *PostgresStore) ListByTeam(ctx context.Context, teamID string) ([]*models.ChannelBinding, error) {
	query := `
		SELECT id, team_id, channel_id, channel_name, is_default, created_at, updated_at
		FROM channel_bindings
		WHERE team_id = $1
		ORDER BY channel_id
	`
	rows, err := s.db.QueryContext(ctx, query, teamID)
	if err != nil {
		return nil, fmt.Errorf("list channel bindings: %w", err)
	}
	defer rows.Close()

	var bindings []*models.ChannelBinding
	for rows.Next() {
		binding, err := scanBinding(rows)
		if err != nil {
			return nil, fmt.Errorf("scan channel binding: %w", err)
		}
		bindings = append(bindings, binding)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate channel bindings: %w", err)
	}
	return bindings, nil
}

// SetDefault clears every default for the team and promotes the target in
// one transaction, so the one-default-per-team invariant holds even under
// concurrent channel selections.
func (s *PostgresStore) SetDefault(ctx context.Context, teamID, channelID string, now time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin set default tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx, `
		UPDATE channel_bindings SET is_default = FALSE, updated_at = $2
		WHERE team_id = $1 AND is_default
	`, teamID, now)
	if err != nil {
		return fmt.Errorf("clear default channel: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE channel_bindings SET is_default = TRUE, updated_at = $3
		WHERE team_id = $1 AND channel_id = $2
	`, teamID, channelID, now)
	if err != nil {
		return fmt.Errorf("set default channel: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set default channel rows: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit set default: %w", err)
	}
	return nil
}

type bindingRow interface {
	Scan(dest ...any) error
}

func scanBinding(row bindingRow) (*models.ChannelBinding, error) {
	var binding models.ChannelBinding
	var bindingID uuid.UUID
	if err := row.Scan(
		&bindingID,
		&binding.TeamID,
		&binding.ChannelID,
		&binding.ChannelName,
		&binding.IsDefault,
		&binding.CreatedAt,
		&binding.UpdatedAt,
	); err != nil {
		return nil, err
	}
	binding.ID = bindingID
	return &binding, nil
}
