package config

import (
	"fmt"
	"net/url"
	"strings"

	"overcast-labs/creditguard/pkg/governor/tiers"
)

// Validate checks the configuration for values that would fail at
// runtime. It is called after defaults and environment overrides.
func Validate(cfg *Config) error {
	if cfg.Server.UpstreamURL == "" {
		return fmt.Errorf("server.upstream_url is required")
	}
	u, err := url.Parse(cfg.Server.UpstreamURL)
	if err != nil {
		return fmt.Errorf("server.upstream_url is not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("server.upstream_url must use http or https, got %q", u.Scheme)
	}

	if _, ok := tiers.Lookup(cfg.Governor.Tier); !ok {
		return fmt.Errorf("governor.tier %q is unknown (valid: %s)",
			cfg.Governor.Tier, strings.Join(tiers.Names(), ", "))
	}
	if cfg.Governor.CostTripThreshold <= 0 || cfg.Governor.CostTripThreshold > 1 {
		return fmt.Errorf("governor.cost_trip_threshold must be in (0, 1], got %v",
			cfg.Governor.CostTripThreshold)
	}
	if cfg.Governor.TripCooldown <= 0 {
		return fmt.Errorf("governor.trip_cooldown must be positive, got %v",
			cfg.Governor.TripCooldown)
	}

	switch cfg.Storage.Backend {
	case "memory", "sqlite", "redis":
	default:
		return fmt.Errorf("storage.backend %q is unknown (valid: memory, sqlite, redis)",
			cfg.Storage.Backend)
	}
	if cfg.Storage.Backend == "sqlite" && cfg.Storage.SQLite.Path == "" {
		return fmt.Errorf("storage.sqlite.path is required for the sqlite backend")
	}
	if cfg.Storage.Backend == "redis" && cfg.Storage.Redis.Addr == "" {
		return fmt.Errorf("storage.redis.addr is required for the redis backend")
	}

	if cfg.Tokens.CharsPerToken <= 0 {
		return fmt.Errorf("tokens.chars_per_token must be positive, got %v",
			cfg.Tokens.CharsPerToken)
	}
	if cfg.Tokens.DefaultCompletionTokens <= 0 {
		return fmt.Errorf("tokens.default_completion_tokens must be positive, got %d",
			cfg.Tokens.DefaultCompletionTokens)
	}

	if cfg.Retention.Enabled {
		if cfg.Retention.Schedule == "" {
			return fmt.Errorf("retention.schedule is required when retention is enabled")
		}
		if cfg.Retention.MaxAge <= 0 {
			return fmt.Errorf("retention.max_age must be positive, got %v",
				cfg.Retention.MaxAge)
		}
	}

	return nil
}
