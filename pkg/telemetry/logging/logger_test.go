package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer

	logger, err := New(Config{Level: "info", Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	logger.Info("request admitted", "tier", "free", "tokens", 605)

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if record["msg"] != "request admitted" {
		t.Errorf("msg = %v, want request admitted", record["msg"])
	}
	if record["tier"] != "free" {
		t.Errorf("tier = %v, want free", record["tier"])
	}
}

func TestNew_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer

	logger, err := New(Config{Level: "warn", Format: "text", Writer: &buf})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	logger.Info("suppressed")
	logger.Warn("emitted")

	out := buf.String()
	if strings.Contains(out, "suppressed") {
		t.Error("info record emitted at warn level")
	}
	if !strings.Contains(out, "emitted") {
		t.Error("warn record missing")
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	if _, err := New(Config{Level: "verbose"}); err == nil {
		t.Error("New accepted invalid level")
	}
	if _, err := New(Config{Format: "xml"}); err == nil {
		t.Error("New accepted invalid format")
	}
}

func TestNew_Defaults(t *testing.T) {
	var buf bytes.Buffer

	logger, err := New(Config{Writer: &buf})
	if err != nil {
		t.Fatalf("New with empty config failed: %v", err)
	}

	logger.Debug("suppressed at default info level")
	logger.Info("emitted")

	if strings.Contains(buf.String(), "suppressed") {
		t.Error("debug record emitted at default level")
	}
	if !strings.Contains(buf.String(), "emitted") {
		t.Error("info record missing at default level")
	}
}

func TestContextRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil)).With("request_id", "abc123")

	ctx := WithContext(context.Background(), logger)
	FromContext(ctx).Info("handled")

	if !strings.Contains(buf.String(), "abc123") {
		t.Errorf("context logger lost attrs: %s", buf.String())
	}

	if got := FromContext(context.Background()); got == nil {
		t.Error("FromContext without logger returned nil")
	}
}
