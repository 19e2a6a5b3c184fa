package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  upstream_url: "https://api.example.com"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.ListenAddress != ":8080" {
		t.Errorf("listen_address = %q, want :8080", cfg.Server.ListenAddress)
	}
	if cfg.Governor.Tier != "free" {
		t.Errorf("tier = %q, want free", cfg.Governor.Tier)
	}
	if cfg.Governor.CostTripThreshold != 0.95 {
		t.Errorf("cost_trip_threshold = %v, want 0.95", cfg.Governor.CostTripThreshold)
	}
	if cfg.Governor.TripCooldown != time.Hour {
		t.Errorf("trip_cooldown = %v, want 1h", cfg.Governor.TripCooldown)
	}
	if cfg.Storage.Backend != "memory" {
		t.Errorf("backend = %q, want memory", cfg.Storage.Backend)
	}
	if cfg.Retention.MaxAge != 48*time.Hour {
		t.Errorf("max_age = %v, want 48h", cfg.Retention.MaxAge)
	}
}

func TestLoad_FileValues(t *testing.T) {
	path := writeConfig(t, `
server:
  listen_address: ":9090"
  upstream_url: "http://upstream:8000"
governor:
  tier: standard
  trip_cooldown: 30m
storage:
  backend: sqlite
  sqlite:
    path: /var/lib/creditguard/usage.db
telemetry:
  logging:
    level: debug
    format: text
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.ListenAddress != ":9090" {
		t.Errorf("listen_address = %q, want :9090", cfg.Server.ListenAddress)
	}
	if cfg.Governor.Tier != "standard" {
		t.Errorf("tier = %q, want standard", cfg.Governor.Tier)
	}
	if cfg.Governor.TripCooldown != 30*time.Minute {
		t.Errorf("trip_cooldown = %v, want 30m", cfg.Governor.TripCooldown)
	}
	if cfg.Storage.SQLite.Path != "/var/lib/creditguard/usage.db" {
		t.Errorf("sqlite path = %q", cfg.Storage.SQLite.Path)
	}
	if cfg.Telemetry.Logging.Level != "debug" {
		t.Errorf("log level = %q, want debug", cfg.Telemetry.Logging.Level)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
server:
  upstream_url: "https://api.example.com"
governor:
  tier: free
`)

	t.Setenv("CREDITGUARD_GOVERNOR_TIER", "premium")
	t.Setenv("CREDITGUARD_SERVER_LISTEN_ADDRESS", "127.0.0.1:7000")
	t.Setenv("CREDITGUARD_RETENTION_MAX_AGE", "72h")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Governor.Tier != "premium" {
		t.Errorf("tier = %q, want env override premium", cfg.Governor.Tier)
	}
	if cfg.Server.ListenAddress != "127.0.0.1:7000" {
		t.Errorf("listen_address = %q, want env override", cfg.Server.ListenAddress)
	}
	if cfg.Retention.MaxAge != 72*time.Hour {
		t.Errorf("max_age = %v, want 72h", cfg.Retention.MaxAge)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("Load accepted a missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "server: [not a mapping")
	if _, err := Load(path); err == nil {
		t.Error("Load accepted invalid YAML")
	}
}
