package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteBackend implements Backend using SQLite for persistence.
// This backend is suitable for single-instance deployments where counts
// must survive process restarts within the same bucket window.
//
// SQLiteBackend uses a write-ahead log (WAL) for better concurrent
// performance and automatic checkpointing to balance write performance
// with durability. Increment executes as a single upsert statement, so
// the read-modify-write is atomic inside the database engine.
type SQLiteBackend struct {
	db               *sql.DB
	dbPath           string
	snapshotInterval time.Duration
	done             chan struct{}
	mu               sync.Mutex
	closeOnce        sync.Once

	// preparedStatements contains pre-compiled SQL statements for performance
	incrementStmt   *sql.Stmt
	getStmt         *sql.Stmt
	saveBreakerStmt *sql.Stmt
	loadBreakerStmt *sql.Stmt
	cleanupStmt     *sql.Stmt
}

// SQLiteBackendConfig configures the SQLite backend.
type SQLiteBackendConfig struct {
	// DBPath is the path to the SQLite database file.
	DBPath string

	// SnapshotInterval is how often to checkpoint the WAL.
	// Default: 5 minutes
	SnapshotInterval time.Duration

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// NewSQLiteBackend creates a new SQLite storage backend with default settings.
func NewSQLiteBackend(dbPath string) (*SQLiteBackend, error) {
	return NewSQLiteBackendWithConfig(SQLiteBackendConfig{
		DBPath:           dbPath,
		SnapshotInterval: 5 * time.Minute,
		BusyTimeout:      5 * time.Second,
	})
}

// NewSQLiteBackendWithConfig creates a new SQLite backend with custom configuration.
func NewSQLiteBackendWithConfig(cfg SQLiteBackendConfig) (*SQLiteBackend, error) {
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if cfg.SnapshotInterval == 0 {
		cfg.SnapshotInterval = 5 * time.Minute
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	// Open database with WAL mode and busy timeout
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d&_synchronous=NORMAL",
		cfg.DBPath, int(cfg.BusyTimeout.Milliseconds()))

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	backend := &SQLiteBackend{
		db:               db,
		dbPath:           cfg.DBPath,
		snapshotInterval: cfg.SnapshotInterval,
		done:             make(chan struct{}),
	}

	if err := backend.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	if err := backend.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	go backend.checkpointLoop()

	return backend, nil
}

// initSchema creates the database schema if it doesn't exist.
func (s *SQLiteBackend) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS usage_buckets (
		bucket_key TEXT PRIMARY KEY,
		requests INTEGER NOT NULL DEFAULT 0,
		tokens INTEGER NOT NULL DEFAULT 0,
		cost_usd REAL NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_usage_buckets_updated ON usage_buckets(updated_at);

	CREATE TABLE IF NOT EXISTS breaker_state (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		active INTEGER NOT NULL,
		reason TEXT NOT NULL,
		tripped_at INTEGER NOT NULL,
		cooldown_ns INTEGER NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// prepareStatements prepares SQL statements for reuse.
func (s *SQLiteBackend) prepareStatements() error {
	var err error

	// The upsert adds deltas inside the database engine, which keeps
	// concurrent increments against the same key from losing updates.
	s.incrementStmt, err = s.db.Prepare(`
		INSERT INTO usage_buckets (bucket_key, requests, tokens, cost_usd, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (bucket_key) DO UPDATE SET
			requests = requests + excluded.requests,
			tokens = tokens + excluded.tokens,
			cost_usd = cost_usd + excluded.cost_usd,
			updated_at = excluded.updated_at
		RETURNING requests, tokens, cost_usd, created_at, updated_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare increment statement: %w", err)
	}

	s.getStmt, err = s.db.Prepare(`
		SELECT requests, tokens, cost_usd, created_at, updated_at
		FROM usage_buckets
		WHERE bucket_key = ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare get statement: %w", err)
	}

	s.saveBreakerStmt, err = s.db.Prepare(`
		INSERT INTO breaker_state (id, active, reason, tripped_at, cooldown_ns)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			active = excluded.active,
			reason = excluded.reason,
			tripped_at = excluded.tripped_at,
			cooldown_ns = excluded.cooldown_ns
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare breaker save statement: %w", err)
	}

	s.loadBreakerStmt, err = s.db.Prepare(`
		SELECT active, reason, tripped_at, cooldown_ns
		FROM breaker_state
		WHERE id = 1
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare breaker load statement: %w", err)
	}

	s.cleanupStmt, err = s.db.Prepare(`
		DELETE FROM usage_buckets
		WHERE updated_at < ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare cleanup statement: %w", err)
	}

	return nil
}

// Increment atomically adds the delta to the record for key.
func (s *SQLiteBackend) Increment(ctx context.Context, key string, delta Delta) (*BucketRecord, error) {
	if key == "" {
		return nil, fmt.Errorf("bucket key cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	record := &BucketRecord{Key: key}

	var createdAt, updatedAt int64
	err := s.incrementStmt.QueryRowContext(ctx,
		key,
		delta.Requests,
		delta.Tokens,
		delta.CostUSD,
		now.Unix(),
		now.Unix(),
	).Scan(&record.Requests, &record.Tokens, &record.CostUSD, &createdAt, &updatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to increment bucket: %w", err)
	}

	record.CreatedAt = time.Unix(createdAt, 0)
	record.UpdatedAt = time.Unix(updatedAt, 0)

	return record, nil
}

// Get retrieves the record for key.
func (s *SQLiteBackend) Get(ctx context.Context, key string) (*BucketRecord, error) {
	if key == "" {
		return nil, fmt.Errorf("bucket key cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record := &BucketRecord{Key: key}

	var createdAt, updatedAt int64
	err := s.getStmt.QueryRowContext(ctx, key).Scan(
		&record.Requests, &record.Tokens, &record.CostUSD, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load bucket: %w", err)
	}

	record.CreatedAt = time.Unix(createdAt, 0)
	record.UpdatedAt = time.Unix(updatedAt, 0)

	return record, nil
}

// SaveBreaker persists circuit breaker state.
func (s *SQLiteBackend) SaveBreaker(ctx context.Context, state *BreakerRecord) error {
	if state == nil {
		return fmt.Errorf("breaker state cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	active := 0
	if state.Active {
		active = 1
	}

	_, err := s.saveBreakerStmt.ExecContext(ctx,
		active,
		state.Reason,
		state.TrippedAt.UnixNano(),
		int64(state.Cooldown),
	)
	if err != nil {
		return fmt.Errorf("failed to save breaker state: %w", err)
	}

	return nil
}

// LoadBreaker retrieves the persisted breaker state.
func (s *SQLiteBackend) LoadBreaker(ctx context.Context) (*BreakerRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		active     int
		reason     string
		trippedAt  int64
		cooldownNS int64
	)

	err := s.loadBreakerStmt.QueryRowContext(ctx).Scan(&active, &reason, &trippedAt, &cooldownNS)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load breaker state: %w", err)
	}

	return &BreakerRecord{
		Active:    active != 0,
		Reason:    reason,
		TrippedAt: time.Unix(0, trippedAt),
		Cooldown:  time.Duration(cooldownNS),
	}, nil
}

// Cleanup removes bucket records not updated since olderThan.
func (s *SQLiteBackend) Cleanup(ctx context.Context, olderThan time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.cleanupStmt.ExecContext(ctx, olderThan.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return int(deleted), nil
}

// Close releases any resources held by the backend.
// Close is idempotent and safe to call multiple times.
func (s *SQLiteBackend) Close() error {
	var closeErr error

	s.closeOnce.Do(func() {
		close(s.done)

		if s.incrementStmt != nil {
			s.incrementStmt.Close()
		}
		if s.getStmt != nil {
			s.getStmt.Close()
		}
		if s.saveBreakerStmt != nil {
			s.saveBreakerStmt.Close()
		}
		if s.loadBreakerStmt != nil {
			s.loadBreakerStmt.Close()
		}
		if s.cleanupStmt != nil {
			s.cleanupStmt.Close()
		}

		if s.db != nil {
			// Run final checkpoint
			_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
			closeErr = s.db.Close()
		}
	})

	return closeErr
}

// checkpointLoop runs periodic WAL checkpoints.
func (s *SQLiteBackend) checkpointLoop() {
	ticker := time.NewTicker(s.snapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_, _ = s.db.Exec("PRAGMA wal_checkpoint(PASSIVE)")
		case <-s.done:
			return
		}
	}
}
