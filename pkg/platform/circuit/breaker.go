// Package circuit provides a simple two-state circuit breaker for
// best-effort dependencies. When a shared tier starts failing, the breaker
// opens and callers skip it entirely instead of paying a timeout per
// request; consecutive successful probes close it again.
package circuit

import (
	"sync"
	"time"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed means the circuit is healthy and calls flow normally.
	StateClosed State = iota
	// StateOpen means the circuit has tripped and callers should use fallback.
	StateOpen
)

// Breaker tracks consecutive failures for fail-safe operations.
// After failureThreshold consecutive failures the circuit opens; while open,
// one probe call is let through per probeInterval, and successThreshold
// consecutive probe successes close it again. Safe for concurrent use.
type Breaker struct {
	mu               sync.Mutex
	state            State
	name             string
	failureCount     int
	successCount     int
	failureThreshold int
	successThreshold int
	probeInterval    time.Duration
	lastProbe        time.Time
}

// Option configures a Breaker instance.
type Option func(*Breaker)

// WithFailureThreshold sets the number of consecutive failures to open the circuit.
// Default is 5.
func WithFailureThreshold(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.failureThreshold = n
		}
	}
}

// WithSuccessThreshold sets the number of consecutive successes to close the circuit.
// Default is 2.
func WithSuccessThreshold(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.successThreshold = n
		}
	}
}

// WithProbeInterval sets how often a call is let through while the circuit is open.
// Default is 10 seconds.
func WithProbeInterval(d time.Duration) Option {
	return func(b *Breaker) {
		if d > 0 {
			b.probeInterval = d
		}
	}
}

// New creates a circuit breaker with the given name and options.
func New(name string, opts ...Option) *Breaker {
	b := &Breaker{
		name:             name,
		state:            StateClosed,
		failureThreshold: 5,
		successThreshold: 2,
		probeInterval:    10 * time.Second,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// Name returns the circuit breaker's name for logging/metrics.
func (b *Breaker) Name() string {
	return b.name
}

// Allow reports whether a call should be attempted. While the circuit is
// open it returns true at most once per probe interval so the dependency
// gets a chance to recover without being hammered.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateClosed {
		return true
	}
	now := time.Now()
	if now.Sub(b.lastProbe) >= b.probeInterval {
		b.lastProbe = now
		return true
	}
	return false
}

// State returns the current circuit state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// RecordFailure records a failed call. Returns true if the circuit just opened.
func (b *Breaker) RecordFailure() (opened bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failureCount++
	b.successCount = 0

	if b.state == StateOpen {
		return false
	}
	if b.failureCount >= b.failureThreshold {
		b.state = StateOpen
		b.lastProbe = time.Now()
		return true
	}
	return false
}

// RecordSuccess records a successful call. Returns true if the circuit just closed.
func (b *Breaker) RecordSuccess() (closed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen {
		b.successCount++
		if b.successCount >= b.successThreshold {
			b.state = StateClosed
			b.failureCount = 0
			b.successCount = 0
			return true
		}
		return false
	}

	b.failureCount = 0
	return false
}

// Reset returns the circuit breaker to closed state with zero counts.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failureCount = 0
	b.successCount = 0
}
