package store

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryBackend implements Backend using in-memory storage.
// This is the default backend and provides fast access with no persistence.
// All data is lost when the process exits.
//
// MemoryBackend is thread-safe: the read-modify-write inside Increment
// executes under a single write lock, so concurrent increments against the
// same bucket key cannot lose updates.
type MemoryBackend struct {
	// buckets maps bucket key to counter record.
	buckets map[string]*BucketRecord

	// breaker holds the persisted breaker state, nil until first save.
	breaker *BreakerRecord

	// mu protects buckets and breaker.
	mu sync.RWMutex

	// cleanupInterval is how often the background cleanup runs.
	cleanupInterval time.Duration

	// done signals the cleanup goroutine to stop.
	done      chan struct{}
	closeOnce sync.Once
}

// MemoryBackendConfig configures the memory backend.
type MemoryBackendConfig struct {
	// CleanupInterval is how often to cleanup aged-out bucket records.
	// Default: 10 minutes
	CleanupInterval time.Duration

	// RetentionPeriod is how long to keep records after their last update.
	// Default: 48 hours (comfortably past the day bucket's usefulness)
	RetentionPeriod time.Duration
}

// NewMemoryBackend creates a new in-memory storage backend with default settings.
func NewMemoryBackend() *MemoryBackend {
	return NewMemoryBackendWithConfig(MemoryBackendConfig{
		CleanupInterval: 10 * time.Minute,
		RetentionPeriod: 48 * time.Hour,
	})
}

// NewMemoryBackendWithConfig creates a new in-memory backend with custom configuration.
func NewMemoryBackendWithConfig(cfg MemoryBackendConfig) *MemoryBackend {
	if cfg.CleanupInterval == 0 {
		cfg.CleanupInterval = 10 * time.Minute
	}
	if cfg.RetentionPeriod == 0 {
		cfg.RetentionPeriod = 48 * time.Hour
	}

	backend := &MemoryBackend{
		buckets:         make(map[string]*BucketRecord),
		cleanupInterval: cfg.CleanupInterval,
		done:            make(chan struct{}),
	}

	go backend.cleanupLoop(cfg.RetentionPeriod)

	return backend
}

// Increment atomically adds the delta to the record for key.
func (m *MemoryBackend) Increment(ctx context.Context, key string, delta Delta) (*BucketRecord, error) {
	if key == "" {
		return nil, fmt.Errorf("bucket key cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	record, exists := m.buckets[key]
	if !exists {
		record = &BucketRecord{
			Key:       key,
			CreatedAt: now,
		}
		m.buckets[key] = record
	}

	record.Requests += delta.Requests
	record.Tokens += delta.Tokens
	record.CostUSD += delta.CostUSD
	record.UpdatedAt = now

	// Return a copy so callers cannot mutate stored state.
	snapshot := *record
	return &snapshot, nil
}

// Get retrieves the record for key.
func (m *MemoryBackend) Get(ctx context.Context, key string) (*BucketRecord, error) {
	if key == "" {
		return nil, fmt.Errorf("bucket key cannot be empty")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	record, exists := m.buckets[key]
	if !exists {
		return nil, nil
	}

	snapshot := *record
	return &snapshot, nil
}

// SaveBreaker persists circuit breaker state.
func (m *MemoryBackend) SaveBreaker(ctx context.Context, state *BreakerRecord) error {
	if state == nil {
		return fmt.Errorf("breaker state cannot be nil")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := *state
	m.breaker = &snapshot
	return nil
}

// LoadBreaker retrieves the persisted breaker state.
func (m *MemoryBackend) LoadBreaker(ctx context.Context) (*BreakerRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.breaker == nil {
		return nil, nil
	}

	snapshot := *m.breaker
	return &snapshot, nil
}

// Cleanup removes bucket records not updated since olderThan.
func (m *MemoryBackend) Cleanup(ctx context.Context, olderThan time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	deleted := 0
	for key, record := range m.buckets {
		if record.UpdatedAt.Before(olderThan) {
			delete(m.buckets, key)
			deleted++
		}
	}

	return deleted, nil
}

// Close releases any resources held by the backend.
// Close is idempotent and safe to call multiple times.
func (m *MemoryBackend) Close() error {
	m.closeOnce.Do(func() {
		close(m.done)
	})
	return nil
}

// Size returns the current number of stored bucket records.
// This is useful for monitoring and testing.
func (m *MemoryBackend) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.buckets)
}

// cleanupLoop runs periodic cleanup of aged-out bucket records.
func (m *MemoryBackend) cleanupLoop(retentionPeriod time.Duration) {
	ticker := time.NewTicker(m.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cutoff := time.Now().Add(-retentionPeriod)
			_, _ = m.Cleanup(context.Background(), cutoff)
		case <-m.done:
			return
		}
	}
}
