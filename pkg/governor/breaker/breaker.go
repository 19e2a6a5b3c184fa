package breaker

import (
	"sync"
	"time"
)

// Breaker is a two-state (Closed/Open) circuit breaker with a reason and
// an expiry. It is safe for concurrent use.
type Breaker struct {
	mu        sync.Mutex
	active    bool
	reason    string
	trippedAt time.Time
	cooldown  time.Duration
	now       func() time.Time
}

// State is a snapshot of the breaker.
type State struct {
	// Active indicates the breaker is open.
	Active bool

	// Reason is why the breaker was tripped, empty when closed.
	Reason string

	// TrippedAt is when the breaker was last tripped.
	TrippedAt time.Time

	// Cooldown is how long the breaker stays open after TrippedAt.
	Cooldown time.Duration
}

// Option configures a Breaker.
type Option func(*Breaker)

// WithClock overrides the wall clock. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) {
		b.now = now
	}
}

// WithState restores the breaker from a previously persisted snapshot.
// A snapshot whose cooldown has already elapsed leaves the breaker closed.
func WithState(s State) Option {
	return func(b *Breaker) {
		b.active = s.Active
		b.reason = s.Reason
		b.trippedAt = s.TrippedAt
		b.cooldown = s.Cooldown
	}
}

// New creates a breaker in the Closed state.
func New(opts ...Option) *Breaker {
	b := &Breaker{
		now: time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Trip transitions Closed to Open, or refreshes an already-open breaker
// with a new reason and cooldown. TrippedAt is set to the current time
// either way.
func (b *Breaker) Trip(reason string, cooldown time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.active = true
	b.reason = reason
	b.trippedAt = b.now()
	b.cooldown = cooldown
}

// Check reports whether the breaker is open. If the cooldown has elapsed,
// Check transitions Open to Closed as a side effect and reports inactive.
func (b *Breaker) Check() (active bool, reason string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refreshLocked()
	return b.active, b.reason
}

// State returns a snapshot of the breaker, refreshing expiry first.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refreshLocked()
	return State{
		Active:    b.active,
		Reason:    b.reason,
		TrippedAt: b.trippedAt,
		Cooldown:  b.cooldown,
	}
}

// Remaining returns how much cooldown is left, zero when closed.
func (b *Breaker) Remaining() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refreshLocked()
	if !b.active {
		return 0
	}
	return b.trippedAt.Add(b.cooldown).Sub(b.now())
}

// refreshLocked clears the open state once the cooldown has elapsed.
// Caller must hold the lock.
func (b *Breaker) refreshLocked() {
	if b.active && !b.now().Before(b.trippedAt.Add(b.cooldown)) {
		b.active = false
		b.reason = ""
	}
}
