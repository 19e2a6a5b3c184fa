package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"overcast-labs/creditguard/pkg/governor/ledger/store"
)

// Error types for ledger failures.
var (
	// ErrStoreRead is returned when the backing store fails on read.
	// The ledger itself fails open on reads; this sentinel exists for
	// callers that inspect wrapped errors from the backend directly.
	ErrStoreRead = errors.New("ledger store read failure")

	// ErrStoreWrite is returned when the backing store fails on write
	// after the retry budget is exhausted.
	ErrStoreWrite = errors.New("ledger store write failure")
)

// Ledger maintains hour and day usage buckets on top of a storage backend.
//
// All methods are safe for concurrent use: atomicity of the underlying
// read-modify-write is delegated to the backend's Increment, and Peek
// never writes.
type Ledger struct {
	backend store.Backend
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the wall clock. Intended for tests that need to
// cross bucket boundaries without sleeping.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

// WithLogger sets the logger used for fail-open warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
	}
}

// New creates a Ledger on top of the given backend.
func New(backend store.Backend, opts ...Option) *Ledger {
	l := &Ledger{
		backend: backend,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Peek returns the current bucket for the window.
//
// A backend read failure is treated as an empty bucket with a logged
// warning, so a storage hiccup cannot block all traffic. A missing
// record is likewise a zero bucket; that is how rollover manifests.
func (l *Ledger) Peek(ctx context.Context, w Window) *Bucket {
	key := BucketKey(w, l.now())

	record, err := l.backend.Get(ctx, key)
	if err != nil {
		l.logger.Warn("bucket unreadable, treating as empty",
			"window", string(w),
			"key", key,
			"error", err,
		)
		return &Bucket{Key: key}
	}
	if record == nil {
		return &Bucket{Key: key}
	}

	return &Bucket{
		Key:      key,
		Requests: record.Requests,
		Tokens:   record.Tokens,
		CostUSD:  record.CostUSD,
	}
}

// Apply atomically adds the delta to the window's current bucket and
// returns the committed state.
//
// A failed write is retried once before the error is surfaced: a lost
// write under-counts usage, which is the one failure direction the
// ledger must not absorb silently.
func (l *Ledger) Apply(ctx context.Context, w Window, delta store.Delta) (*Bucket, error) {
	key := BucketKey(w, l.now())

	record, err := l.backend.Increment(ctx, key, delta)
	if err != nil {
		l.logger.Warn("bucket increment failed, retrying",
			"window", string(w),
			"key", key,
			"error", err,
		)

		record, err = l.backend.Increment(ctx, key, delta)
		if err != nil {
			return nil, fmt.Errorf("%w: %s %s: %v", ErrStoreWrite, w, key, err)
		}
	}

	return &Bucket{
		Key:      key,
		Requests: record.Requests,
		Tokens:   record.Tokens,
		CostUSD:  record.CostUSD,
	}, nil
}

// NextRollover returns when the window's current bucket expires.
// Useful for Retry-After hints on denials.
func (l *Ledger) NextRollover(w Window) time.Time {
	return NextRollover(w, l.now())
}

// Now returns the ledger's current wall-clock time.
func (l *Ledger) Now() time.Time {
	return l.now()
}
