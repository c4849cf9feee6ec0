package installation

import (
	"context"
	"sync"
	"time"

	"github.com/stockalert-pro/stockalert-slack-app/internal/sentinel"
	"github.com/stockalert-pro/stockalert-slack-app/internal/tenant/models"
)

// InMemoryStore keeps installations in a map for tests and local runs.
type InMemoryStore struct {
	mu            sync.RWMutex
	installations map[string]*models.Installation
}

// NewMemory constructs an empty in-memory installation store.
func NewMemory() *InMemoryStore {
	return &InMemoryStore{installations: make(map[string]*models.Installation)}
}

func (s *InMemoryStore) Upsert(_ context.Context, inst *models.Installation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copyInst := *inst
	if existing, ok := s.installations[inst.TeamID]; ok {
		copyInst.CreatedAt = existing.CreatedAt
	}
	s.installations[inst.TeamID] = &copyInst
	return nil
}

func (s *InMemoryStore) FindByTeamID(_ context.Context, teamID string) (*models.Installation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inst, ok := s.installations[teamID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copyInst := *inst
	return &copyInst, nil
}

func (s *InMemoryStore) Disconnect(_ context.Context, teamID string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.installations[teamID]
	if !ok {
		return sentinel.ErrNotFound
	}
	inst.APIKey = ""
	inst.WebhookSecret = ""
	inst.WebhookID = ""
	inst.UpdatedAt = now
	return nil
}
