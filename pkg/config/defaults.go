package config

import "time"

// ApplyDefaults fills zero-valued fields with sensible defaults.
// Required fields with no safe default (the upstream URL) are left
// empty for Validate to reject.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = ":8080"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 120 * time.Second
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = 120 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Server.MaxHeaderBytes == 0 {
		cfg.Server.MaxHeaderBytes = 1 << 20
	}

	if cfg.Governor.Tier == "" {
		cfg.Governor.Tier = "free"
	}
	if cfg.Governor.CostTripThreshold == 0 {
		cfg.Governor.CostTripThreshold = 0.95
	}
	if cfg.Governor.TripCooldown == 0 {
		cfg.Governor.TripCooldown = time.Hour
	}

	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "memory"
	}
	if cfg.Storage.SQLite.Path == "" {
		cfg.Storage.SQLite.Path = "creditguard.db"
	}
	if cfg.Storage.Redis.Addr == "" {
		cfg.Storage.Redis.Addr = "localhost:6379"
	}
	if cfg.Storage.Redis.KeyPrefix == "" {
		cfg.Storage.Redis.KeyPrefix = "creditguard"
	}
	if cfg.Storage.Redis.TTL == 0 {
		cfg.Storage.Redis.TTL = 48 * time.Hour
	}

	if cfg.Tokens.CharsPerToken == 0 {
		cfg.Tokens.CharsPerToken = 4.0
	}
	if cfg.Tokens.DefaultCompletionTokens == 0 {
		cfg.Tokens.DefaultCompletionTokens = 256
	}

	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = "info"
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = "json"
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = "/metrics"
	}

	if cfg.Retention.Schedule == "" {
		cfg.Retention.Schedule = "0 * * * *"
	}
	if cfg.Retention.MaxAge == 0 {
		cfg.Retention.MaxAge = 48 * time.Hour
	}
}
