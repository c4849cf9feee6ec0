package channel

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/stockalert-pro/stockalert-slack-app/internal/sentinel"
	"github.com/stockalert-pro/stockalert-slack-app/internal/tenant/models"
)

// InMemoryStore keeps channel bindings in nested maps for tests and local runs.
type InMemoryStore struct {
	mu       sync.RWMutex
	bindings map[string]map[string]*models.ChannelBinding
}

// NewMemory constructs an empty in-memory channel store.
func NewMemory() *InMemoryStore {
	return &InMemoryStore{bindings: make(map[string]map[string]*models.ChannelBinding)}
}

func (s *InMemoryStore) Upsert(_ context.Context, binding *models.ChannelBinding) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	team, ok := s.bindings[binding.TeamID]
	if !ok {
		team = make(map[string]*models.ChannelBinding)
		s.bindings[binding.TeamID] = team
	}
	copyBinding := *binding
	if existing, ok := team[binding.ChannelID]; ok {
		copyBinding.ID = existing.ID
		copyBinding.CreatedAt = existing.CreatedAt
		copyBinding.IsDefault = existing.IsDefault
	}
	team[binding.ChannelID] = &copyBinding
	return nil
}

func (s *InMemoryStore) FindDefault(_ context.Context, teamID string) (*models.ChannelBinding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, binding := range s.bindings[teamID] {
		if binding.IsDefault {
			copyBinding := *binding
			return &copyBinding, nil
		}
	}
	return nil, sentinel.ErrNoDestination
}

func (s *InMemoryStore) ListByTeam(_ context.Context, teamID string) ([]*models.ChannelBinding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var bindings []*models.ChannelBinding
	for _, binding := range s.bindings[teamID] {
		copyBinding := *binding
		bindings = append(bindings, &copyBinding)
	}
	sort.Slice(bindings, func(i, j int) bool {
		return bindings[i].ChannelID < bindings[j].ChannelID
	})
	return bindings, nil
}

func (s *InMemoryStore) SetDefault(_ context.Context, teamID, channelID string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	team := s.bindings[teamID]
	target, ok := team[channelID]
	if !ok {
		return sentinel.ErrNotFound
	}
	for _, binding := range team {
		if binding.IsDefault {
			binding.IsDefault = false
			binding.UpdatedAt = now
		}
	}
	target.IsDefault = true
	target.UpdatedAt = now
	return nil
}
