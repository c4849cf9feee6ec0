package installation

import (
	"context"
	"time"

	"github.com/stockalert-pro/stockalert-slack-app/internal/tenant/models"
)

// Store persists workspace installations keyed by Slack team ID.
//
// Error Contract:
// - FindByTeamID returns sentinel.ErrNotFound when the team is unknown.
// - Upsert replaces an existing row for the same team.
// - Infrastructure failures come back wrapped with context.
type Store interface {
	Upsert(ctx context.Context, inst *models.Installation) error
	FindByTeamID(ctx context.Context, teamID string) (*models.Installation, error)

	// Disconnect clears the integration credential fields while keeping the
	// installation row. Returns ErrNotFound for an unknown team.
	Disconnect(ctx context.Context, teamID string, now time.Time) error
}
