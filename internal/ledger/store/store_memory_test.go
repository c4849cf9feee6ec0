package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/stockalert-pro/stockalert-slack-app/internal/ledger/models"
	"github.com/stockalert-pro/stockalert-slack-app/internal/sentinel"
)

// =============================================================================
// Ledger Store Test Suite
// =============================================================================
// Justification: The ledger is what makes webhook intake idempotent. These
// tests pin the duplicate contract (nil, nil), the winner-takes-all behavior
// under concurrent inserts, and the purge rule that never touches
// unprocessed events.

type LedgerStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
}

func TestLedgerStoreSuite(t *testing.T) {
	suite.Run(t, new(LedgerStoreSuite))
}

func (s *LedgerStoreSuite) SetupTest() {
	s.store = NewMemory()
	s.ctx = context.Background()
}

func (s *LedgerStoreSuite) newEvent(eventID string, receivedAt time.Time) *models.InboundEvent {
	event, err := models.NewInboundEvent(eventID, "T0001", "alert.triggered",
		json.RawMessage(`{"symbol":"AAPL"}`), receivedAt)
	s.Require().NoError(err)
	return event
}

func (s *LedgerStoreSuite) TestRecordIfNew() {
	s.Run("first insert wins, second observes duplicate", func() {
		event := s.newEvent("evt_1", time.Now())

		stored, err := s.store.RecordIfNew(s.ctx, event)
		s.Require().NoError(err)
		s.Require().NotNil(stored)
		s.Equal("evt_1", stored.EventID)

		dup, err := s.store.RecordIfNew(s.ctx, event)
		s.Require().NoError(err)
		s.Nil(dup, "duplicate must come back as (nil, nil)")
	})

	s.Run("duplicate detection ignores payload differences", func() {
		first := s.newEvent("evt_2", time.Now())
		_, err := s.store.RecordIfNew(s.ctx, first)
		s.Require().NoError(err)

		replay := s.newEvent("evt_2", time.Now())
		replay.Payload = json.RawMessage(`{"symbol":"TSLA"}`)
		dup, err := s.store.RecordIfNew(s.ctx, replay)
		s.Require().NoError(err)
		s.Nil(dup)

		kept, err := s.store.FindByID(s.ctx, "evt_2")
		s.Require().NoError(err)
		s.JSONEq(`{"symbol":"AAPL"}`, string(kept.Payload), "original payload must survive the replay")
	})

	s.Run("exactly one concurrent caller wins", func() {
		const goroutines = 16
		var wins atomic.Int32
		var wg sync.WaitGroup
		start := make(chan struct{})

		for i := 0; i < goroutines; i++ {
			i := i
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				event := s.newEvent("evt_race", time.Now())
				event.EventType = fmt.Sprintf("alert.triggered.%d", i)
				stored, err := s.store.RecordIfNew(s.ctx, event)
				s.NoError(err)
				if stored != nil {
					wins.Add(1)
				}
			}()
		}
		close(start)
		wg.Wait()

		s.Equal(int32(1), wins.Load(), "exactly one insert must win the race")
	})
}

func (s *LedgerStoreSuite) TestMarkProcessed() {
	s.Run("stamps processed time once", func() {
		event := s.newEvent("evt_3", time.Now())
		_, err := s.store.RecordIfNew(s.ctx, event)
		s.Require().NoError(err)

		first := time.Now()
		s.Require().NoError(s.store.MarkProcessed(s.ctx, "evt_3", first))

		// A second call must not move the stamp.
		s.Require().NoError(s.store.MarkProcessed(s.ctx, "evt_3", first.Add(time.Hour)))

		found, err := s.store.FindByID(s.ctx, "evt_3")
		s.Require().NoError(err)
		s.Require().NotNil(found.ProcessedAt)
		s.True(found.ProcessedAt.Equal(first))
	})

	s.Run("unknown event returns not found", func() {
		err := s.store.MarkProcessed(s.ctx, "evt_missing", time.Now())
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *LedgerStoreSuite) TestPurgeProcessedOlderThan() {
	s.Run("purges only processed events past the cutoff", func() {
		now := time.Now()
		old := now.Add(-48 * time.Hour)

		// Old and processed: purged.
		_, err := s.store.RecordIfNew(s.ctx, s.newEvent("evt_old_done", old))
		s.Require().NoError(err)
		s.Require().NoError(s.store.MarkProcessed(s.ctx, "evt_old_done", old))

		// Old but never processed: kept.
		_, err = s.store.RecordIfNew(s.ctx, s.newEvent("evt_old_stuck", old))
		s.Require().NoError(err)

		// Recent and processed: kept.
		_, err = s.store.RecordIfNew(s.ctx, s.newEvent("evt_recent", now))
		s.Require().NoError(err)
		s.Require().NoError(s.store.MarkProcessed(s.ctx, "evt_recent", now))

		deleted, err := s.store.PurgeProcessedOlderThan(s.ctx, now.Add(-24*time.Hour))
		s.Require().NoError(err)
		s.Equal(1, deleted)

		_, err = s.store.FindByID(s.ctx, "evt_old_done")
		s.ErrorIs(err, sentinel.ErrNotFound)

		_, err = s.store.FindByID(s.ctx, "evt_old_stuck")
		s.NoError(err, "unprocessed events must survive retention")

		_, err = s.store.FindByID(s.ctx, "evt_recent")
		s.NoError(err)
	})
}

func (s *LedgerStoreSuite) TestFindByID() {
	s.Run("returns a copy, not the stored entry", func() {
		_, err := s.store.RecordIfNew(s.ctx, s.newEvent("evt_4", time.Now()))
		s.Require().NoError(err)

		found, err := s.store.FindByID(s.ctx, "evt_4")
		s.Require().NoError(err)
		found.TeamID = "T_MUTATED"

		again, err := s.store.FindByID(s.ctx, "evt_4")
		s.Require().NoError(err)
		s.Equal("T0001", again.TeamID)
	})

	s.Run("unknown event returns not found", func() {
		_, err := s.store.FindByID(s.ctx, "evt_missing")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}
