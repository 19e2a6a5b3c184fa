package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"overcast-labs/creditguard/pkg/governor"
	"overcast-labs/creditguard/pkg/governor/pricing"
)

func newTestHandler(t *testing.T) (*governor.Governor, *UsageHandler) {
	t.Helper()

	gov, err := governor.New(context.Background(), governor.Config{Tier: "free"})
	if err != nil {
		t.Fatalf("failed to create governor: %v", err)
	}
	return gov, NewUsageHandler(gov)
}

func TestSummary(t *testing.T) {
	gov, h := newTestHandler(t)
	ctx := context.Background()

	if err := gov.RecordUsage(ctx, 1000, pricing.ModelKimi); err != nil {
		t.Fatalf("failed to record usage: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/usage", nil)
	rec := httptest.NewRecorder()
	h.Summary(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var snapshot governor.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snapshot); err != nil {
		t.Fatalf("body is not a snapshot: %v", err)
	}
	if snapshot.Tier != "free" {
		t.Errorf("tier = %q, want free", snapshot.Tier)
	}
	if snapshot.Daily.Usage.Tokens != 1000 {
		t.Errorf("daily tokens = %d, want 1000", snapshot.Daily.Usage.Tokens)
	}
	if snapshot.Daily.Limits.Requests != 50 {
		t.Errorf("daily request limit = %d, want 50", snapshot.Daily.Limits.Requests)
	}
}

func TestSummary_MethodNotAllowed(t *testing.T) {
	_, h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/usage", nil)
	rec := httptest.NewRecorder()
	h.Summary(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestBreaker_TripAndInspect(t *testing.T) {
	_, h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/breaker", nil)
	rec := httptest.NewRecorder()
	h.Breaker(rec, req)

	var state breakerResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &state); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if state.Active {
		t.Fatal("fresh breaker reported active")
	}

	req = httptest.NewRequest(http.MethodPost, "/v1/breaker",
		strings.NewReader(`{"reason":"incident 4821","cooldown_minutes":30}`))
	rec = httptest.NewRecorder()
	h.Breaker(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("trip status = %d, want 200", rec.Code)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &state); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if !state.Active || state.Reason != "incident 4821" {
		t.Errorf("state after trip = %+v, want active with reason", state)
	}
}

func TestBreaker_RejectsBadBody(t *testing.T) {
	_, h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/breaker", strings.NewReader("nope"))
	rec := httptest.NewRecorder()
	h.Breaker(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for invalid JSON", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/v1/breaker", strings.NewReader(`{"cooldown_minutes":5}`))
	rec = httptest.NewRecorder()
	h.Breaker(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for missing reason", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	Health(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "ok") {
		t.Errorf("body = %q, want ok status", rec.Body.String())
	}
}
