package store

import (
	"context"
	"time"
)

// Backend defines the interface for usage bucket persistence.
// Implementations must be thread-safe and support concurrent access,
// and Increment must be atomic per bucket key (see the package docs).
type Backend interface {
	// Increment atomically adds the delta to the record for key, creating
	// the record if it does not exist, and returns the committed record.
	Increment(ctx context.Context, key string, delta Delta) (*BucketRecord, error)

	// Get retrieves the record for key. Returns nil if no record exists.
	// Returns an error only on backend failure.
	Get(ctx context.Context, key string) (*BucketRecord, error)

	// SaveBreaker persists circuit breaker state. There is exactly one
	// breaker record per deployment; Save overwrites it.
	SaveBreaker(ctx context.Context, state *BreakerRecord) error

	// LoadBreaker retrieves the persisted breaker state.
	// Returns nil if no state has been saved.
	LoadBreaker(ctx context.Context) (*BreakerRecord, error)

	// Cleanup removes bucket records not updated since olderThan.
	// Old records are never read again, so this is an operational
	// convenience rather than a correctness requirement. Returns the
	// number of records deleted.
	Cleanup(ctx context.Context, olderThan time.Time) (int, error)

	// Close releases any resources held by the backend.
	// The backend should not be used after calling Close.
	Close() error
}

// Delta is an increment applied to a bucket record.
type Delta struct {
	// Requests is the request count delta.
	Requests int64

	// Tokens is the token count delta.
	Tokens int64

	// CostUSD is the cost delta in USD.
	CostUSD float64
}

// BucketRecord is the persisted counter state for one usage bucket.
type BucketRecord struct {
	// Key is the bucket key this record is stored under.
	Key string

	// Requests is the number of requests recorded in this bucket.
	Requests int64

	// Tokens is the number of tokens recorded in this bucket.
	Tokens int64

	// CostUSD is the cost in USD recorded in this bucket.
	CostUSD float64

	// CreatedAt is when this record was first written.
	CreatedAt time.Time

	// UpdatedAt is when this record was last incremented.
	UpdatedAt time.Time
}

// BreakerRecord is the persisted circuit breaker state.
type BreakerRecord struct {
	// Active indicates the breaker was open when last saved.
	Active bool

	// Reason is why the breaker was tripped.
	Reason string

	// TrippedAt is when the breaker was tripped.
	TrippedAt time.Time

	// Cooldown is how long the breaker stays open after TrippedAt.
	Cooldown time.Duration
}
