package governor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"overcast-labs/creditguard/pkg/governor/ledger/store"
	"overcast-labs/creditguard/pkg/governor/pricing"
	"overcast-labs/creditguard/pkg/governor/tiers"
)

// fakeClock is a settable wall clock for crossing bucket boundaries and
// cooldowns without sleeping.
type fakeClock struct {
	nanos atomic.Int64
}

func newFakeClock(t time.Time) *fakeClock {
	c := &fakeClock{}
	c.nanos.Store(t.UnixNano())
	return c
}

func (c *fakeClock) Now() time.Time {
	return time.Unix(0, c.nanos.Load()).UTC()
}

func (c *fakeClock) Advance(d time.Duration) {
	c.nanos.Add(int64(d))
}

func newTestGovernor(t *testing.T, tier string, clock *fakeClock, backend store.Backend) *Governor {
	t.Helper()

	if backend == nil {
		backend = store.NewMemoryBackend()
		t.Cleanup(func() { backend.Close() })
	}

	g, err := New(context.Background(), Config{
		Tier:    tier,
		Backend: backend,
		Clock:   clock.Now,
	})
	if err != nil {
		t.Fatalf("failed to create governor: %v", err)
	}
	return g
}

func TestNew_UnknownTier(t *testing.T) {
	_, err := New(context.Background(), Config{Tier: "platinum"})
	if !errors.Is(err, tiers.ErrUnknownTier) {
		t.Fatalf("New with unknown tier returned %v, want ErrUnknownTier", err)
	}
}

func TestCanAdmit_PerRequestBoundary(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 8, 31, 10, 30, 0, 0, time.UTC))
	g := newTestGovernor(t, "free", clock, nil)
	ctx := context.Background()

	// The free tier caps a single request at 2000 tokens, inclusive.
	if d := g.CanAdmit(ctx, 2000, pricing.ModelKimi); !d.Allowed {
		t.Errorf("CanAdmit(2000) denied: %s", d.Message)
	}

	d := g.CanAdmit(ctx, 2001, pricing.ModelKimi)
	if d.Allowed {
		t.Fatal("CanAdmit(2001) allowed, want denied")
	}
	if d.Code != ReasonPerRequestLimit {
		t.Errorf("denial code = %q, want %q", d.Code, ReasonPerRequestLimit)
	}
}

func TestCanAdmit_HourlyRequestLimitAndRollover(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 8, 31, 10, 30, 0, 0, time.UTC))
	g := newTestGovernor(t, "free", clock, nil)
	ctx := context.Background()

	// Fill the free tier's hourly request budget of 10.
	for i := 0; i < 10; i++ {
		if d := g.CanAdmit(ctx, 100, pricing.ModelKimi); !d.Allowed {
			t.Fatalf("request %d denied: %s", i+1, d.Message)
		}
		if err := g.RecordUsage(ctx, 100, pricing.ModelKimi); err != nil {
			t.Fatalf("failed to record usage: %v", err)
		}
	}

	d := g.CanAdmit(ctx, 100, pricing.ModelKimi)
	if d.Allowed {
		t.Fatal("11th request allowed, want denied")
	}
	if want := HourlyLimitReason(DimensionRequests); d.Code != want {
		t.Errorf("denial code = %q, want %q", d.Code, want)
	}
	if want := 30 * time.Minute; d.RetryAfter != want {
		t.Errorf("RetryAfter = %v, want %v", d.RetryAfter, want)
	}

	// Crossing the hour boundary addresses a fresh bucket; no reset
	// write is involved.
	clock.Advance(time.Hour)
	if d := g.CanAdmit(ctx, 100, pricing.ModelKimi); !d.Allowed {
		t.Errorf("request after rollover denied: %s", d.Message)
	}
}

func TestCanAdmit_IsReadOnly(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC))
	g := newTestGovernor(t, "free", clock, nil)
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		g.CanAdmit(ctx, 100, pricing.ModelKimi)
	}
	g.CanAdmit(ctx, 5000, pricing.ModelKimi)

	summary := g.Summary(ctx)
	if summary.Hourly.Usage.Requests != 0 || summary.Daily.Usage.Requests != 0 {
		t.Errorf("admission checks changed counters: hourly=%d daily=%d",
			summary.Hourly.Usage.Requests, summary.Daily.Usage.Requests)
	}
}

func TestRecordUsage_AutoTripsOnDailyCost(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC))
	g := newTestGovernor(t, "free", clock, nil)
	ctx := context.Background()

	// Each record adds $0.01 (1000 kimi tokens). The free tier's daily
	// cost limit is $0.25 and the trip threshold is 95% of it.
	for i := 0; i < 22; i++ {
		if err := g.RecordUsage(ctx, 1000, pricing.ModelKimi); err != nil {
			t.Fatalf("failed to record usage: %v", err)
		}
	}
	if active, _ := g.CheckCircuitBreaker(); active {
		t.Fatal("breaker tripped at $0.22, below the threshold")
	}

	for i := 0; i < 2; i++ {
		if err := g.RecordUsage(ctx, 1000, pricing.ModelKimi); err != nil {
			t.Fatalf("failed to record usage: %v", err)
		}
	}

	active, reason := g.CheckCircuitBreaker()
	if !active {
		t.Fatal("breaker not tripped at $0.24, above the 95% threshold")
	}
	if reason == "" {
		t.Error("tripped breaker has empty reason")
	}

	d := g.CanAdmit(ctx, 100, pricing.ModelKimi)
	if d.Allowed {
		t.Fatal("request admitted while breaker open")
	}
	if d.Code != ReasonCircuitBreakerActive {
		t.Errorf("denial code = %q, want %q", d.Code, ReasonCircuitBreakerActive)
	}
	if d.RetryAfter <= 0 {
		t.Errorf("RetryAfter = %v, want positive cooldown remainder", d.RetryAfter)
	}
}

func TestRecordUsage_DoesNotRecheckLimits(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC))
	g := newTestGovernor(t, "free", clock, nil)
	ctx := context.Background()

	// Recording past the hourly request limit must succeed; admission
	// and accounting are deliberately decoupled.
	for i := 0; i < 15; i++ {
		if err := g.RecordUsage(ctx, 10, pricing.ModelHuggingFace); err != nil {
			t.Fatalf("record %d failed: %v", i+1, err)
		}
	}

	summary := g.Summary(ctx)
	if summary.Hourly.Usage.Requests != 15 {
		t.Errorf("hourly requests = %d, want 15", summary.Hourly.Usage.Requests)
	}
	if summary.Hourly.Percentages.Requests != 150 {
		t.Errorf("hourly request percentage = %v, want 150", summary.Hourly.Percentages.Requests)
	}
}

func TestTriggerCircuitBreaker_SelfHealing(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC))
	g := newTestGovernor(t, "standard", clock, nil)
	ctx := context.Background()

	g.TriggerCircuitBreaker(ctx, "provider outage", 30*time.Minute)

	if active, reason := g.CheckCircuitBreaker(); !active || reason != "provider outage" {
		t.Fatalf("breaker = (%v, %q), want open with reason", active, reason)
	}
	if d := g.CanAdmit(ctx, 100, pricing.ModelQwen); d.Allowed {
		t.Fatal("request admitted while breaker open")
	}

	clock.Advance(30 * time.Minute)

	if active, _ := g.CheckCircuitBreaker(); active {
		t.Fatal("breaker still open after cooldown elapsed")
	}
	if d := g.CanAdmit(ctx, 100, pricing.ModelQwen); !d.Allowed {
		t.Errorf("request denied after breaker closed: %s", d.Message)
	}
}

func TestNew_RestoresPersistedBreaker(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC))
	backend := store.NewMemoryBackend()
	t.Cleanup(func() { backend.Close() })
	ctx := context.Background()

	first := newTestGovernor(t, "free", clock, backend)
	first.TriggerCircuitBreaker(ctx, "manual hold", time.Hour)

	// A second governor over the same backend sees the trip, as a
	// restarted process would.
	second := newTestGovernor(t, "free", clock, backend)
	active, reason := second.CheckCircuitBreaker()
	if !active || reason != "manual hold" {
		t.Fatalf("restored breaker = (%v, %q), want open with persisted reason", active, reason)
	}

	clock.Advance(time.Hour)
	if active, _ := second.CheckCircuitBreaker(); active {
		t.Error("restored breaker did not close after cooldown")
	}
}

func TestSummary_Percentages(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC))
	g := newTestGovernor(t, "free", clock, nil)
	ctx := context.Background()

	// 5 requests of 500 kimi tokens: 2500 tokens, $0.025.
	for i := 0; i < 5; i++ {
		if err := g.RecordUsage(ctx, 500, pricing.ModelKimi); err != nil {
			t.Fatalf("failed to record usage: %v", err)
		}
	}

	s := g.Summary(ctx)
	if s.Tier != "free" {
		t.Errorf("tier = %q, want free", s.Tier)
	}
	if s.Hourly.Usage.Requests != 5 || s.Daily.Usage.Requests != 5 {
		t.Errorf("requests = %d hourly / %d daily, want 5/5",
			s.Hourly.Usage.Requests, s.Daily.Usage.Requests)
	}
	if s.Hourly.Percentages.Requests != 50 {
		t.Errorf("hourly request percentage = %v, want 50", s.Hourly.Percentages.Requests)
	}
	if s.Daily.Percentages.Requests != 10 {
		t.Errorf("daily request percentage = %v, want 10", s.Daily.Percentages.Requests)
	}
	if s.Hourly.Percentages.Tokens != 50 {
		t.Errorf("hourly token percentage = %v, want 50", s.Hourly.Percentages.Tokens)
	}
	if s.Daily.Percentages.Tokens != 10 {
		t.Errorf("daily token percentage = %v, want 10", s.Daily.Percentages.Tokens)
	}
	if s.CircuitBreaker.Active {
		t.Error("breaker reported open on a fresh governor")
	}
	if s.Daily.Limits.Requests != 50 || s.Hourly.Limits.Requests != 10 {
		t.Errorf("limits = %d daily / %d hourly, want 50/10",
			s.Daily.Limits.Requests, s.Hourly.Limits.Requests)
	}
}

func TestCanAdmit_DailyTokenLimit(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC))
	g := newTestGovernor(t, "economy", clock, nil)
	ctx := context.Background()

	// Spread 98000 tokens over the day so no hourly limit interferes
	// (economy: 20000 tokens/hour, 100000 tokens/day).
	for hour := 0; hour < 7; hour++ {
		if err := g.RecordUsage(ctx, 14000, pricing.ModelHuggingFace); err != nil {
			t.Fatalf("failed to record usage: %v", err)
		}
		clock.Advance(time.Hour)
	}

	// 98000 daily tokens used. 2000 more lands exactly on the limit;
	// 2001 exceeds it.
	if d := g.CanAdmit(ctx, 2000, pricing.ModelHuggingFace); !d.Allowed {
		t.Errorf("CanAdmit at exact daily token limit denied: %s", d.Message)
	}

	d := g.CanAdmit(ctx, 2001, pricing.ModelHuggingFace)
	if d.Allowed {
		t.Fatal("CanAdmit past daily token limit allowed")
	}
	if want := DailyLimitReason(DimensionTokens); d.Code != want {
		t.Errorf("denial code = %q, want %q", d.Code, want)
	}
}
