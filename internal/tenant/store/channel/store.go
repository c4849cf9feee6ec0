package channel

import (
	"context"
	"time"

	"github.com/stockalert-pro/stockalert-slack-app/internal/tenant/models"
)

// Store persists channel bindings per workspace.
//
// Error Contract:
//   - FindDefault returns sentinel.ErrNoDestination when the team has no
//     default binding.
//   - SetDefault returns sentinel.ErrNotFound when the channel is not bound.
//   - Infrastructure failures come back wrapped with context.
type Store interface {
	Upsert(ctx context.Context, binding *models.ChannelBinding) error
	FindDefault(ctx context.Context, teamID string) (*models.ChannelBinding, error)
	ListByTeam(ctx context.Context, teamID string) ([]*models.ChannelBinding, error)

	// SetDefault makes the given channel the team's only default binding.
	// Clearing previous defaults and setting the new one happens atomically.
	SetDefault(ctx context.Context, teamID, channelID string, now time.Time) error
}
