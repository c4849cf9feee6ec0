package installation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/stockalert-pro/stockalert-slack-app/internal/sentinel"
	"github.com/stockalert-pro/stockalert-slack-app/internal/tenant/models"
)

// PostgresStore persists installations in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed installation store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Upsert(ctx context.Context, inst *models.Installation) error {
	if inst == nil {
		return fmt.Errorf("installation is required")
	}
	query := `
		INSERT INTO installations (team_id, team_name, bot_token, api_key, webhook_secret, webhook_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (team_id) DO UPDATE SET
			team_name = EXCLUDED.team_name,
			bot_token = EXCLUDED.bot_token,
			api_key = EXCLUDED.api_key,
			webhook_secret = EXCLUDED.webhook_secret,
			webhook_id = EXCLUDED.webhook_id,
			updated_at = EXCLUDED.updated_at
	`
	_, err := s.db.ExecContext(ctx, query,
		inst.TeamID,
		inst.TeamName,
		inst.BotToken,
		inst.APIKey,
		inst.WebhookSecret,
		inst.WebhookID,
		inst.CreatedAt,
		inst.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert installation: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByTeamID(ctx context.Context, teamID string) (*models.Installation, error) {
	query := `
		SELECT team_id, team_name, bot_token, api_key, webhook_secret, webhook_id, created_at, updated_at
		FROM installations
		WHERE team_id = $1
	`
	var inst models.Installation
	err := s.db.QueryRowContext(ctx, query, teamID).Scan(
		&inst.TeamID,
		&inst.TeamName,
		&inst.BotToken,
		&inst.APIKey,
		&inst.WebhookSecret,
		&inst.WebhookID,
		&inst.CreatedAt,
		&inst.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find installation: %w", err)
	}
	return &inst, nil
}

func (s *PostgresStore) Disconnect(ctx context.Context, teamID string, now time.Time) error {
	query := `
		UPDATE installations
		SET api_key = '', webhook_secret = '', webhook_id = '', updated_at = $2
		WHERE team_id = $1
	`
	res, err := s.db.ExecContext(ctx, query, teamID, now)
	if err != nil {
		return fmt.Errorf("disconnect installation: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("disconnect installation rows: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
