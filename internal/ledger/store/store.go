package store

import (
	"context"
	"time"

	"github.com/stockalert-pro/stockalert-slack-app/internal/ledger/models"
)

// Store persists the inbound event ledger.
//
// Error Contract:
//   - RecordIfNew returns (nil, nil) when the event ID was already recorded;
//     the caller treats that as a duplicate, not a failure.
//   - FindByID returns sentinel.ErrNotFound when no such event exists.
//   - Infrastructure failures come back wrapped with context.
type Store interface {
	// RecordIfNew inserts the event if its ID has never been seen. Exactly
	// one concurrent caller wins; everyone else observes the duplicate.
	RecordIfNew(ctx context.Context, event *models.InboundEvent) (*models.InboundEvent, error)

	// MarkProcessed stamps the processed time. Calling it again for the
	// same event is a no-op.
	MarkProcessed(ctx context.Context, eventID string, processedAt time.Time) error

	// PurgeProcessedOlderThan deletes processed events received before the
	// cutoff. Unprocessed events are never purged regardless of age.
	PurgeProcessedOlderThan(ctx context.Context, cutoff time.Time) (int, error)

	// FindByID fetches a single ledger entry.
	FindByID(ctx context.Context, eventID string) (*models.InboundEvent, error)
}
