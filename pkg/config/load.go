package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads configuration from a YAML file, applies defaults and
// environment overrides, and validates the result. An empty path loads
// defaults plus environment only.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
		}
	}

	ApplyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// applyEnvOverrides applies CREDITGUARD_SECTION_FIELD environment
// variables over the loaded configuration.
func applyEnvOverrides(cfg *Config) {
	setString("CREDITGUARD_SERVER_LISTEN_ADDRESS", &cfg.Server.ListenAddress)
	setString("CREDITGUARD_SERVER_UPSTREAM_URL", &cfg.Server.UpstreamURL)
	setDuration("CREDITGUARD_SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	setDuration("CREDITGUARD_SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	setDuration("CREDITGUARD_SERVER_IDLE_TIMEOUT", &cfg.Server.IdleTimeout)
	setDuration("CREDITGUARD_SERVER_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)

	setString("CREDITGUARD_GOVERNOR_TIER", &cfg.Governor.Tier)
	setFloat("CREDITGUARD_GOVERNOR_COST_TRIP_THRESHOLD", &cfg.Governor.CostTripThreshold)
	setDuration("CREDITGUARD_GOVERNOR_TRIP_COOLDOWN", &cfg.Governor.TripCooldown)

	setString("CREDITGUARD_STORAGE_BACKEND", &cfg.Storage.Backend)
	setString("CREDITGUARD_STORAGE_SQLITE_PATH", &cfg.Storage.SQLite.Path)
	setString("CREDITGUARD_STORAGE_REDIS_ADDR", &cfg.Storage.Redis.Addr)
	setString("CREDITGUARD_STORAGE_REDIS_PASSWORD", &cfg.Storage.Redis.Password)
	setInt("CREDITGUARD_STORAGE_REDIS_DB", &cfg.Storage.Redis.DB)
	setString("CREDITGUARD_STORAGE_REDIS_KEY_PREFIX", &cfg.Storage.Redis.KeyPrefix)
	setDuration("CREDITGUARD_STORAGE_REDIS_TTL", &cfg.Storage.Redis.TTL)

	setString("CREDITGUARD_PRICING_FILE_PATH", &cfg.Pricing.FilePath)

	setString("CREDITGUARD_TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	setString("CREDITGUARD_TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)

	setString("CREDITGUARD_RETENTION_SCHEDULE", &cfg.Retention.Schedule)
	setDuration("CREDITGUARD_RETENTION_MAX_AGE", &cfg.Retention.MaxAge)
}

func setString(key string, dst *string) {
	if val := os.Getenv(key); val != "" {
		*dst = val
	}
}

func setInt(key string, dst *int) {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			*dst = n
		}
	}
}

func setFloat(key string, dst *float64) {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			*dst = f
		}
	}
}

func setDuration(key string, dst *time.Duration) {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}
