package tokens

import (
	"strings"
	"testing"
)

func TestEstimateText(t *testing.T) {
	e := NewEstimator(Config{})

	tests := []struct {
		text string
		want int64
	}{
		{"", 0},
		{"hi", 1},
		{"12345678", 2},
		{strings.Repeat("a", 400), 100},
		{strings.Repeat("a", 402), 101},
	}

	for _, tt := range tests {
		if got := e.EstimateText(tt.text); got != tt.want {
			t.Errorf("EstimateText(%d chars) = %d, want %d", len(tt.text), got, tt.want)
		}
	}
}

func TestEstimateRequest(t *testing.T) {
	e := NewEstimator(Config{})

	body := []byte(`{
		"model": "kimi-k2",
		"messages": [
			{"role": "user", "content": "` + strings.Repeat("a", 400) + `"}
		],
		"max_tokens": 500
	}`)

	est, err := e.EstimateRequest(body)
	if err != nil {
		t.Fatalf("EstimateRequest failed: %v", err)
	}

	if est.Model != "kimi-k2" {
		t.Errorf("model = %q, want kimi-k2", est.Model)
	}
	// 100 content tokens + 1 role token + 4 overhead.
	if est.PromptTokens != 105 {
		t.Errorf("prompt tokens = %d, want 105", est.PromptTokens)
	}
	if est.CompletionTokens != 500 {
		t.Errorf("completion tokens = %d, want 500", est.CompletionTokens)
	}
	if est.TotalTokens != 605 {
		t.Errorf("total tokens = %d, want 605", est.TotalTokens)
	}
}

func TestEstimateRequest_DefaultCompletion(t *testing.T) {
	e := NewEstimator(Config{DefaultCompletionTokens: 128})

	est, err := e.EstimateRequest([]byte(`{"model":"qwen","messages":[{"role":"user","content":"hello"}]}`))
	if err != nil {
		t.Fatalf("EstimateRequest failed: %v", err)
	}
	if est.CompletionTokens != 128 {
		t.Errorf("completion tokens = %d, want configured default 128", est.CompletionTokens)
	}
}

func TestEstimateRequest_ArrayContent(t *testing.T) {
	e := NewEstimator(Config{})

	body := []byte(`{
		"model": "qwen",
		"messages": [
			{"role": "user", "content": [
				{"type": "text", "text": "` + strings.Repeat("b", 200) + `"},
				{"type": "text", "text": "` + strings.Repeat("c", 200) + `"}
			]}
		]
	}`)

	est, err := e.EstimateRequest(body)
	if err != nil {
		t.Fatalf("EstimateRequest failed: %v", err)
	}
	// 400 flattened chars -> 100 tokens, plus role and overhead.
	if est.PromptTokens != 105 {
		t.Errorf("prompt tokens = %d, want 105", est.PromptTokens)
	}
}

func TestEstimateRequest_Invalid(t *testing.T) {
	e := NewEstimator(Config{})

	if _, err := e.EstimateRequest([]byte(`not json`)); err == nil {
		t.Error("EstimateRequest accepted invalid JSON")
	}
	if _, err := e.EstimateRequest([]byte(`{"model":"kimi","messages":[]}`)); err == nil {
		t.Error("EstimateRequest accepted empty messages")
	}
}
