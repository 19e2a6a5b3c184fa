package store

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"
)

// redisBackendForTest connects to the Redis instance named by
// CREDITGUARD_TEST_REDIS_ADDR, skipping the test when unset.
func redisBackendForTest(t *testing.T) *RedisBackend {
	addr := os.Getenv("CREDITGUARD_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("CREDITGUARD_TEST_REDIS_ADDR not set, skipping Redis backend tests")
	}

	backend, err := NewRedisBackend(context.Background(), RedisBackendConfig{
		Addr:      addr,
		KeyPrefix: fmt.Sprintf("creditguard-test-%d", time.Now().UnixNano()),
		TTL:       time.Minute,
	})
	if err != nil {
		t.Fatalf("failed to create redis backend: %v", err)
	}
	t.Cleanup(func() { backend.Close() })

	return backend
}

func TestRedisBackend_IncrementAndGet(t *testing.T) {
	backend := redisBackendForTest(t)
	ctx := context.Background()

	record, err := backend.Increment(ctx, "hour:2026-08-31T14", Delta{
		Requests: 1,
		Tokens:   100,
		CostUSD:  0.001,
	})
	if err != nil {
		t.Fatalf("Increment failed: %v", err)
	}
	if record.Requests != 1 || record.Tokens != 100 {
		t.Errorf("Expected requests=1 tokens=100, got %+v", record)
	}

	loaded, err := backend.Get(ctx, "hour:2026-08-31T14")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if loaded == nil || loaded.Requests != 1 || loaded.Tokens != 100 {
		t.Errorf("Loaded record mismatch: %+v", loaded)
	}
}

func TestRedisBackend_ConcurrentIncrements(t *testing.T) {
	backend := redisBackendForTest(t)
	ctx := context.Background()

	const goroutines = 10
	const perGoroutine = 20

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				if _, err := backend.Increment(ctx, "day:2026-08-31", Delta{Requests: 1}); err != nil {
					t.Errorf("Increment failed: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	record, err := backend.Get(ctx, "day:2026-08-31")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if record.Requests != goroutines*perGoroutine {
		t.Errorf("Lost updates: expected %d, got %d", goroutines*perGoroutine, record.Requests)
	}
}

func TestRedisBackend_BreakerRoundTrip(t *testing.T) {
	backend := redisBackendForTest(t)
	ctx := context.Background()

	state := &BreakerRecord{
		Active:    true,
		Reason:    "manual lockout",
		TrippedAt: time.Now(),
		Cooldown:  30 * time.Minute,
	}
	if err := backend.SaveBreaker(ctx, state); err != nil {
		t.Fatalf("SaveBreaker failed: %v", err)
	}

	loaded, err := backend.LoadBreaker(ctx)
	if err != nil {
		t.Fatalf("LoadBreaker failed: %v", err)
	}
	if loaded == nil || !loaded.Active || loaded.Reason != "manual lockout" {
		t.Errorf("Breaker state mismatch: %+v", loaded)
	}
	if loaded.Cooldown != 30*time.Minute {
		t.Errorf("Cooldown mismatch: %v", loaded.Cooldown)
	}
}

// The field parsers run without a live Redis instance.
func TestParseFields(t *testing.T) {
	fields := map[string]string{
		"requests": "42",
		"cost_usd": "0.125",
		"mangled":  "not-a-number",
	}

	if n, err := parseIntField(fields, "requests"); err != nil || n != 42 {
		t.Errorf("parseIntField(requests) = (%d, %v), want (42, nil)", n, err)
	}
	if f, err := parseFloatField(fields, "cost_usd"); err != nil || f != 0.125 {
		t.Errorf("parseFloatField(cost_usd) = (%v, %v), want (0.125, nil)", f, err)
	}

	// Missing fields read as zero, not as errors.
	if n, err := parseIntField(fields, "tokens"); err != nil || n != 0 {
		t.Errorf("parseIntField(missing) = (%d, %v), want (0, nil)", n, err)
	}

	// A field that doesn't parse is an error, never silent zero usage.
	if _, err := parseIntField(fields, "mangled"); err == nil {
		t.Error("parseIntField accepted a non-numeric field")
	}
	if _, err := parseFloatField(fields, "mangled"); err == nil {
		t.Error("parseFloatField accepted a non-numeric field")
	}
}
