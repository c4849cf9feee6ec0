package window

import (
	"context"
	"sync"
	"time"

	"github.com/stockalert-pro/stockalert-slack-app/internal/ratelimit/models"
)

// MemoryStore implements sliding window rate limiting in process memory.
// Suitable for single-instance deployments and tests; multi-instance
// deployments share counters through RedisStore instead.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]*slidingWindow

	now func() time.Time
}

// slidingWindow holds the ordered admission timestamps for one key.
type slidingWindow struct {
	timestamps []time.Time
}

// NewMemory creates an in-memory sliding window store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		windows: make(map[string]*slidingWindow),
		now:     time.Now,
	}
}

// Allow prunes timestamps older than the window, then admits the request iff
// the surviving count is below limit, recording the admission timestamp.
// The request that brings the count exactly to the limit is admitted; the
// next one within the window is rejected.
func (s *MemoryStore) Allow(_ context.Context, key string, limit int, window time.Duration) (*models.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	w, ok := s.windows[key]
	if !ok {
		w = &slidingWindow{}
		s.windows[key] = w
	}
	w.prune(now.Add(-window))

	count := len(w.timestamps)
	if count >= limit {
		// Reset hint comes from the oldest surviving timestamp: the window
		// frees a slot when that entry ages out.
		resetAt := w.timestamps[0].Add(window)
		return &models.Result{
			Allowed:    false,
			Limit:      limit,
			Remaining:  0,
			ResetAt:    resetAt,
			RetryAfter: retryAfterSeconds(now, resetAt),
		}, nil
	}

	w.timestamps = append(w.timestamps, now)
	return &models.Result{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - count - 1,
		ResetAt:   now.Add(window),
	}, nil
}

// Reset clears the counter for a key.
func (s *MemoryStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.windows, key)
	return nil
}

func (w *slidingWindow) prune(cutoff time.Time) {
	i := 0
	for ; i < len(w.timestamps); i++ {
		if w.timestamps[i].After(cutoff) {
			break
		}
	}
	w.timestamps = w.timestamps[i:]
}

func retryAfterSeconds(now, resetAt time.Time) int {
	seconds := int(resetAt.Sub(now).Seconds())
	if seconds < 0 {
		return 0
	}
	return seconds
}
