package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// Memory is the in-process cache tier. It starts empty after a restart;
// the far tier and the durable store refill it through the read path.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry

	now  func() time.Time
	stop chan struct{}
	once sync.Once
}

// NewMemory creates an in-process tier and starts a background sweep that
// drops expired entries so an idle process does not accumulate dead keys.
// Call Close to stop the sweep.
func NewMemory() *Memory {
	m := &Memory{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	go m.sweepLoop()
	return m
}

// Close stops the background sweep. Safe to call more than once. Reads and
// writes keep working afterwards; only the expiry sweep halts.
func (m *Memory) Close() error {
	m.once.Do(func() { close(m.stop) })
	return nil
}

// Get returns the value for key if present and unexpired.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.entries[key]
	if !ok || m.now().After(entry.expiresAt) {
		return nil, false, nil
	}
	return entry.value, true, nil
}

// Set stores value under key until now+ttl.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryEntry{value: value, expiresAt: m.now().Add(ttl)}
	return nil
}

// Delete removes key.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *Memory) sweepLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

func (m *Memory) sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for key, entry := range m.entries {
		if now.After(entry.expiresAt) {
			delete(m.entries, key)
		}
	}
}

var _ Tier = (*Memory)(nil)
