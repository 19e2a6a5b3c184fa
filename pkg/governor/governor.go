package governor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"overcast-labs/creditguard/pkg/governor/breaker"
	"overcast-labs/creditguard/pkg/governor/ledger"
	"overcast-labs/creditguard/pkg/governor/ledger/store"
	"overcast-labs/creditguard/pkg/governor/pricing"
	"overcast-labs/creditguard/pkg/governor/tiers"
)

const (
	// defaultCostTripThreshold is the fraction of the daily cost limit
	// at which the breaker auto-trips.
	defaultCostTripThreshold = 0.95

	// defaultTripCooldown is how long an auto-trip keeps the breaker open.
	defaultTripCooldown = time.Hour

	autoTripTrigger   = "daily_cost"
	manualTripTrigger = "manual"
)

// Config configures a Governor.
type Config struct {
	// Tier is the tier name to enforce. Must exist in the tier catalog.
	Tier string

	// Backend is the usage store. Defaults to an in-memory backend.
	Backend store.Backend

	// Rates is the per-model cost table. Defaults to the built-in rates.
	Rates *pricing.Table

	// Logger receives governor log output. Defaults to slog.Default().
	Logger *slog.Logger

	// Metrics receives admission metrics. Nil disables metric recording.
	Metrics *Metrics

	// CostTripThreshold overrides the auto-trip fraction of the daily
	// cost limit. Zero means the default of 0.95.
	CostTripThreshold float64

	// TripCooldown overrides the auto-trip cooldown. Zero means the
	// default of one hour.
	TripCooldown time.Duration

	// Clock overrides the wall clock. Intended for tests.
	Clock func() time.Time
}

// Governor enforces one tier's usage quotas.
type Governor struct {
	tier    tiers.Config
	rates   *pricing.Table
	ledger  *ledger.Ledger
	breaker *breaker.Breaker
	backend store.Backend
	logger  *slog.Logger
	metrics *Metrics

	costTripThreshold float64
	tripCooldown      time.Duration
}

// New creates a Governor for the configured tier.
//
// Persisted breaker state is restored from the backend, so an operator
// trip survives a process restart. A restore failure logs a warning and
// starts the breaker closed.
func New(ctx context.Context, cfg Config) (*Governor, error) {
	tier, ok := tiers.Lookup(cfg.Tier)
	if !ok {
		return nil, fmt.Errorf("%w: %q (known tiers: %s)",
			tiers.ErrUnknownTier, cfg.Tier, strings.Join(tiers.Names(), ", "))
	}

	backend := cfg.Backend
	if backend == nil {
		backend = store.NewMemoryBackend()
	}

	rates := cfg.Rates
	if rates == nil {
		rates = pricing.NewTable()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "governor", "tier", tier.Name)

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	threshold := cfg.CostTripThreshold
	if threshold <= 0 {
		threshold = defaultCostTripThreshold
	}

	cooldown := cfg.TripCooldown
	if cooldown <= 0 {
		cooldown = defaultTripCooldown
	}

	brkOpts := []breaker.Option{breaker.WithClock(clock)}
	if persisted, err := backend.LoadBreaker(ctx); err != nil {
		logger.Warn("breaker state unreadable, starting closed", "error", err)
	} else if persisted != nil {
		brkOpts = append(brkOpts, breaker.WithState(breaker.State{
			Active:    persisted.Active,
			Reason:    persisted.Reason,
			TrippedAt: persisted.TrippedAt,
			Cooldown:  persisted.Cooldown,
		}))
	}

	return &Governor{
		tier:              tier,
		rates:             rates,
		ledger:            ledger.New(backend, ledger.WithClock(clock), ledger.WithLogger(logger)),
		breaker:           breaker.New(brkOpts...),
		backend:           backend,
		logger:            logger,
		metrics:           cfg.Metrics,
		costTripThreshold: threshold,
		tripCooldown:      cooldown,
	}, nil
}

// Tier returns the tier config this governor enforces.
func (g *Governor) Tier() tiers.Config {
	return g.tier
}

// Rates returns the governor's cost table.
func (g *Governor) Rates() *pricing.Table {
	return g.rates
}

// CanAdmit decides whether a request with the given token estimate may
// proceed. It never writes: denied requests leave no trace in the
// ledger, and admission itself does not reserve quota.
//
// Checks run in a fixed order and the first violation wins: circuit
// breaker, per-request token cap, hourly limits, daily limits. Within a
// window, dimensions are checked as requests, then tokens, then cost.
// Limits are inclusive: a request that lands exactly on a limit is
// admitted, only strictly exceeding it is denied.
func (g *Governor) CanAdmit(ctx context.Context, tokens int64, model pricing.ModelID) Decision {
	if active, reason := g.breaker.Check(); active {
		g.metrics.setBreakerActive(g.tier.Name, true)
		return g.deny(ctx, ReasonCircuitBreakerActive,
			fmt.Sprintf("circuit breaker active: %s", reason),
			g.breaker.Remaining())
	}
	g.metrics.setBreakerActive(g.tier.Name, false)

	if tokens > g.tier.PerRequestMaxTokens {
		return g.deny(ctx, ReasonPerRequestLimit,
			fmt.Sprintf("request estimate of %d tokens exceeds per-request limit of %d",
				tokens, g.tier.PerRequestMaxTokens),
			0)
	}

	hour := g.ledger.Peek(ctx, ledger.WindowHour)
	day := g.ledger.Peek(ctx, ledger.WindowDay)
	cost := g.rates.EstimateCost(model, tokens)

	untilHour := g.ledger.NextRollover(ledger.WindowHour).Sub(g.ledger.Now())
	untilDay := g.ledger.NextRollover(ledger.WindowDay).Sub(g.ledger.Now())

	switch {
	case hour.Requests+1 > g.tier.HourlyMaxRequests:
		return g.deny(ctx, HourlyLimitReason(DimensionRequests),
			fmt.Sprintf("hourly request limit reached (%d/%d)",
				hour.Requests, g.tier.HourlyMaxRequests),
			untilHour)
	case hour.Tokens+tokens > g.tier.HourlyMaxTokens:
		return g.deny(ctx, HourlyLimitReason(DimensionTokens),
			fmt.Sprintf("hourly token limit would be exceeded (%d used, %d requested, %d allowed)",
				hour.Tokens, tokens, g.tier.HourlyMaxTokens),
			untilHour)
	case hour.CostUSD+cost > g.tier.HourlyMaxCostUSD:
		return g.deny(ctx, HourlyLimitReason(DimensionCost),
			fmt.Sprintf("hourly cost limit would be exceeded ($%.4f used, $%.4f requested, $%.2f allowed)",
				hour.CostUSD, cost, g.tier.HourlyMaxCostUSD),
			untilHour)
	case day.Requests+1 > g.tier.DailyMaxRequests:
		return g.deny(ctx, DailyLimitReason(DimensionRequests),
			fmt.Sprintf("daily request limit reached (%d/%d)",
				day.Requests, g.tier.DailyMaxRequests),
			untilDay)
	case day.Tokens+tokens > g.tier.DailyMaxTokens:
		return g.deny(ctx, DailyLimitReason(DimensionTokens),
			fmt.Sprintf("daily token limit would be exceeded (%d used, %d requested, %d allowed)",
				day.Tokens, tokens, g.tier.DailyMaxTokens),
			untilDay)
	case day.CostUSD+cost > g.tier.DailyMaxCostUSD:
		return g.deny(ctx, DailyLimitReason(DimensionCost),
			fmt.Sprintf("daily cost limit would be exceeded ($%.4f used, $%.4f requested, $%.2f allowed)",
				day.CostUSD, cost, g.tier.DailyMaxCostUSD),
			untilDay)
	}

	g.metrics.recordDecision(g.tier.Name, true, "")
	return Decision{
		Allowed: true,
		Usage:   g.snapshot(hour, day),
	}
}

// deny builds a denial decision with a fresh snapshot.
func (g *Governor) deny(ctx context.Context, code, message string, retryAfter time.Duration) Decision {
	g.metrics.recordDecision(g.tier.Name, false, code)

	if retryAfter < 0 {
		retryAfter = 0
	}

	return Decision{
		Allowed:    false,
		Code:       code,
		Message:    message,
		RetryAfter: retryAfter,
		Usage:      g.currentSnapshot(ctx),
	}
}

// RecordUsage commits a completed request's usage to both windows and
// applies the daily-cost auto-trip rule.
//
// RecordUsage does not re-check limits: callers may record usage that
// was never admitted (reconciliation against upstream billing), so
// counters can legitimately exceed limits.
func (g *Governor) RecordUsage(ctx context.Context, tokens int64, model pricing.ModelID) error {
	cost := g.rates.EstimateCost(model, tokens)
	delta := store.Delta{Requests: 1, Tokens: tokens, CostUSD: cost}

	if _, err := g.ledger.Apply(ctx, ledger.WindowHour, delta); err != nil {
		return fmt.Errorf("failed to record hourly usage: %w", err)
	}

	day, err := g.ledger.Apply(ctx, ledger.WindowDay, delta)
	if err != nil {
		return fmt.Errorf("failed to record daily usage: %w", err)
	}

	g.metrics.recordUsage(g.tier.Name, string(model), tokens, cost)

	// Auto-trip when the committed daily cost reaches the threshold
	// fraction of the daily limit. An already-open breaker is left
	// alone so repeated records don't extend the cooldown.
	if day.CostUSD >= g.costTripThreshold*g.tier.DailyMaxCostUSD {
		if active, _ := g.breaker.Check(); !active {
			reason := fmt.Sprintf("daily cost $%.4f reached %.0f%% of the $%.2f limit",
				day.CostUSD, g.costTripThreshold*100, g.tier.DailyMaxCostUSD)
			g.trip(ctx, reason, g.tripCooldown, autoTripTrigger)
		}
	}

	return nil
}

// Summary returns the read-only usage view for the current hour and day.
func (g *Governor) Summary(ctx context.Context) *Snapshot {
	return g.currentSnapshot(ctx)
}

// TriggerCircuitBreaker opens the breaker manually for the given
// cooldown, refreshing the reason and expiry if it is already open.
func (g *Governor) TriggerCircuitBreaker(ctx context.Context, reason string, cooldown time.Duration) {
	if cooldown <= 0 {
		cooldown = g.tripCooldown
	}
	g.trip(ctx, reason, cooldown, manualTripTrigger)
}

// CheckCircuitBreaker reports whether the breaker is open and why.
func (g *Governor) CheckCircuitBreaker() (bool, string) {
	return g.breaker.Check()
}

// trip opens the breaker and persists the new state. Persistence is
// best-effort: a storage failure is logged, the in-memory breaker is
// authoritative for this process.
func (g *Governor) trip(ctx context.Context, reason string, cooldown time.Duration, trigger string) {
	g.breaker.Trip(reason, cooldown)
	g.metrics.recordTrip(g.tier.Name, trigger)
	g.metrics.setBreakerActive(g.tier.Name, true)

	g.logger.Warn("circuit breaker tripped",
		"reason", reason,
		"cooldown", cooldown,
		"trigger", trigger,
	)

	state := g.breaker.State()
	if err := g.backend.SaveBreaker(ctx, &store.BreakerRecord{
		Active:    state.Active,
		Reason:    state.Reason,
		TrippedAt: state.TrippedAt,
		Cooldown:  state.Cooldown,
	}); err != nil {
		g.logger.Warn("failed to persist breaker state", "error", err)
	}
}

// currentSnapshot reads both windows and builds a snapshot.
func (g *Governor) currentSnapshot(ctx context.Context) *Snapshot {
	hour := g.ledger.Peek(ctx, ledger.WindowHour)
	day := g.ledger.Peek(ctx, ledger.WindowDay)
	return g.snapshot(hour, day)
}

// snapshot builds the usage view from already-read buckets.
func (g *Governor) snapshot(hour, day *ledger.Bucket) *Snapshot {
	state := g.breaker.State()

	return &Snapshot{
		Tier: g.tier.Name,
		Daily: WindowStatus{
			Usage: Usage{
				Requests: day.Requests,
				Tokens:   day.Tokens,
				Cost:     day.CostUSD,
			},
			Limits: Limits{
				Requests: g.tier.DailyMaxRequests,
				Tokens:   g.tier.DailyMaxTokens,
				Cost:     g.tier.DailyMaxCostUSD,
			},
			Percentages: Percentages{
				Requests: percentage(float64(day.Requests), float64(g.tier.DailyMaxRequests)),
				Tokens:   percentage(float64(day.Tokens), float64(g.tier.DailyMaxTokens)),
				Cost:     percentage(day.CostUSD, g.tier.DailyMaxCostUSD),
			},
		},
		Hourly: WindowStatus{
			Usage: Usage{
				Requests: hour.Requests,
				Tokens:   hour.Tokens,
				Cost:     hour.CostUSD,
			},
			Limits: Limits{
				Requests: g.tier.HourlyMaxRequests,
				Tokens:   g.tier.HourlyMaxTokens,
				Cost:     g.tier.HourlyMaxCostUSD,
			},
			Percentages: Percentages{
				Requests: percentage(float64(hour.Requests), float64(g.tier.HourlyMaxRequests)),
				Tokens:   percentage(float64(hour.Tokens), float64(g.tier.HourlyMaxTokens)),
				Cost:     percentage(hour.CostUSD, g.tier.HourlyMaxCostUSD),
			},
		},
		CircuitBreaker: BreakerStatus{
			Active: state.Active,
			Reason: state.Reason,
		},
	}
}
