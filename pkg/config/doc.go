// Package config defines the service configuration schema and loading.
//
// Configuration is a YAML file with sections for the HTTP server, the
// quota governor, usage storage, model pricing, token estimation,
// telemetry, and retention. Loading applies defaults for missing values,
// then environment variable overrides, then validates the result.
//
// Environment variables follow the naming convention
// CREDITGUARD_SECTION_FIELD. For example:
//
//   - CREDITGUARD_SERVER_LISTEN_ADDRESS overrides server.listen_address
//   - CREDITGUARD_GOVERNOR_TIER overrides governor.tier
//   - CREDITGUARD_STORAGE_REDIS_ADDR overrides storage.redis.addr
//
// Environment variables always take precedence over file values.
package config
