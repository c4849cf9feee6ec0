package store

import (
	"context"
	"sync"
	"time"

	"github.com/stockalert-pro/stockalert-slack-app/internal/ledger/models"
	"github.com/stockalert-pro/stockalert-slack-app/internal/sentinel"
)

// InMemoryStore keeps the ledger in a map for tests and single-instance runs.
type InMemoryStore struct {
	mu     sync.Mutex
	events map[string]*models.InboundEvent
}

// NewMemory constructs an empty in-memory ledger store.
func NewMemory() *InMemoryStore {
	return &InMemoryStore{events: make(map[string]*models.InboundEvent)}
}

func (s *InMemoryStore) RecordIfNew(_ context.Context, event *models.InboundEvent) (*models.InboundEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[event.EventID]; ok {
		return nil, nil
	}
	copyEvent := *event
	s.events[event.EventID] = &copyEvent
	stored := copyEvent
	return &stored, nil
}

func (s *InMemoryStore) MarkProcessed(_ context.Context, eventID string, processedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	event, ok := s.events[eventID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if event.ProcessedAt == nil {
		t := processedAt
		event.ProcessedAt = &t
	}
	return nil
}

func (s *InMemoryStore) PurgeProcessedOlderThan(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for id, event := range s.events {
		if event.ProcessedAt != nil && event.ReceivedAt.Before(cutoff) {
			delete(s.events, id)
			deleted++
		}
	}
	return deleted, nil
}

func (s *InMemoryStore) FindByID(_ context.Context, eventID string) (*models.InboundEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	event, ok := s.events[eventID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copyEvent := *event
	if event.ProcessedAt != nil {
		t := *event.ProcessedAt
		copyEvent.ProcessedAt = &t
	}
	return &copyEvent, nil
}
