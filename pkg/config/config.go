package config

import "time"

// Config is the root configuration for the service.
type Config struct {
	// Server configures the HTTP listener and upstream proxying.
	Server ServerConfig `yaml:"server"`

	// Governor configures quota enforcement.
	Governor GovernorConfig `yaml:"governor"`

	// Storage configures the usage ledger backend.
	Storage StorageConfig `yaml:"storage"`

	// Pricing configures the per-model cost table.
	Pricing PricingConfig `yaml:"pricing"`

	// Tokens configures request token estimation.
	Tokens TokensConfig `yaml:"tokens"`

	// Telemetry configures logging and metrics.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Retention configures periodic cleanup of expired usage buckets.
	Retention RetentionConfig `yaml:"retention"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	// ListenAddress is the address the server binds to.
	ListenAddress string `yaml:"listen_address"`

	// UpstreamURL is the base URL admitted requests are proxied to.
	UpstreamURL string `yaml:"upstream_url"`

	// ReadTimeout bounds reading the full request including body.
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout bounds writing the response. LLM completions are
	// slow, so this defaults well above typical API timeouts.
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout bounds how long idle keep-alive connections are held.
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes caps request header size.
	MaxHeaderBytes int `yaml:"max_header_bytes"`
}

// GovernorConfig configures quota enforcement.
type GovernorConfig struct {
	// Tier is the tier whose limits are enforced.
	Tier string `yaml:"tier"`

	// CostTripThreshold is the fraction of the daily cost limit at
	// which the circuit breaker auto-trips.
	CostTripThreshold float64 `yaml:"cost_trip_threshold"`

	// TripCooldown is how long an auto-trip keeps the breaker open.
	TripCooldown time.Duration `yaml:"trip_cooldown"`
}

// StorageConfig configures the usage ledger backend.
type StorageConfig struct {
	// Backend selects the storage implementation: "memory", "sqlite"
	// or "redis".
	Backend string `yaml:"backend"`

	// SQLite configures the sqlite backend.
	SQLite SQLiteConfig `yaml:"sqlite"`

	// Redis configures the redis backend.
	Redis RedisConfig `yaml:"redis"`
}

// SQLiteConfig configures the sqlite storage backend.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string `yaml:"path"`
}

// RedisConfig configures the redis storage backend.
type RedisConfig struct {
	// Addr is the redis server address.
	Addr string `yaml:"addr"`

	// Password authenticates to redis, empty for none.
	Password string `yaml:"password"`

	// DB is the redis database number.
	DB int `yaml:"db"`

	// KeyPrefix namespaces this service's keys.
	KeyPrefix string `yaml:"key_prefix"`

	// TTL is the expiry applied to usage bucket keys.
	TTL time.Duration `yaml:"ttl"`
}

// PricingConfig configures the per-model cost table.
type PricingConfig struct {
	// FilePath points to a YAML rates file. Empty uses built-in rates.
	FilePath string `yaml:"file_path"`

	// WatchForChanges reloads the rates file when it changes on disk.
	WatchForChanges bool `yaml:"watch_for_changes"`
}

// TokensConfig configures request token estimation.
type TokensConfig struct {
	// CharsPerToken is the character-to-token ratio.
	CharsPerToken float64 `yaml:"chars_per_token"`

	// DefaultCompletionTokens is assumed when a request omits max_tokens.
	DefaultCompletionTokens int64 `yaml:"default_completion_tokens"`
}

// TelemetryConfig configures logging and metrics.
type TelemetryConfig struct {
	// Logging configures structured log output.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics configures the Prometheus endpoint.
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig configures structured log output.
type LoggingConfig struct {
	// Level is the minimum log level ("debug", "info", "warn", "error").
	Level string `yaml:"level"`

	// Format is "json" or "text".
	Format string `yaml:"format"`

	// AddSource includes file and line in log records.
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Enabled exposes the metrics endpoint.
	Enabled bool `yaml:"enabled"`

	// Path is the metrics endpoint path.
	Path string `yaml:"path"`
}

// RetentionConfig configures periodic cleanup of expired usage buckets.
type RetentionConfig struct {
	// Enabled turns the cleanup scheduler on.
	Enabled bool `yaml:"enabled"`

	// Schedule is a standard cron expression for cleanup runs.
	Schedule string `yaml:"schedule"`

	// MaxAge is how long bucket records are kept after last update.
	MaxAge time.Duration `yaml:"max_age"`
}
