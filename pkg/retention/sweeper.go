package retention

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"overcast-labs/creditguard/pkg/governor/ledger/store"
)

// Config configures the sweeper.
type Config struct {
	// Schedule is a standard cron expression for sweep runs.
	Schedule string

	// MaxAge is how long bucket records are kept after last update.
	MaxAge time.Duration

	// Logger receives sweep output. Nil means slog.Default().
	Logger *slog.Logger
}

// Sweeper runs periodic cleanup of expired usage buckets.
type Sweeper struct {
	backend  store.Backend
	schedule string
	maxAge   time.Duration
	cron     *cron.Cron
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
}

// NewSweeper creates a sweeper over the given backend. The schedule is
// validated here so a bad config fails at startup, not at first run.
func NewSweeper(backend store.Backend, cfg Config) (*Sweeper, error) {
	if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
		return nil, fmt.Errorf("invalid cron schedule %q: %w", cfg.Schedule, err)
	}
	if cfg.MaxAge <= 0 {
		return nil, fmt.Errorf("max age must be positive, got %v", cfg.MaxAge)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Sweeper{
		backend:  backend,
		schedule: cfg.Schedule,
		maxAge:   cfg.MaxAge,
		cron:     cron.New(),
		logger:   logger.With("component", "retention"),
	}, nil
}

// Start begins scheduled sweeping. The sweeper stops when ctx is
// cancelled or Stop is called.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("sweeper already running")
	}

	if _, err := s.cron.AddFunc(s.schedule, func() {
		s.Sweep(ctx)
	}); err != nil {
		return fmt.Errorf("failed to schedule sweep: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("retention sweeper started",
		"schedule", s.schedule,
		"max_age", s.maxAge,
	)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// Sweep runs one cleanup pass immediately, outside the schedule.
func (s *Sweeper) Sweep(ctx context.Context) {
	cutoff := time.Now().Add(-s.maxAge)

	deleted, err := s.backend.Cleanup(ctx, cutoff)
	if err != nil {
		s.logger.Error("retention sweep failed", "error", err)
		return
	}

	if deleted > 0 {
		s.logger.Info("retention sweep completed", "deleted", deleted)
	} else {
		s.logger.Debug("retention sweep completed, nothing to delete")
	}
}

// Stop stops the scheduler and waits for a running sweep to finish.
// Safe to call multiple times.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		<-s.cron.Stop().Done()
		s.running = false
		s.logger.Info("retention sweeper stopped")
	}
}

// IsRunning reports whether the scheduler is active.
func (s *Sweeper) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
