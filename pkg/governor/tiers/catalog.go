package tiers

import (
	"errors"
	"sort"
)

// ErrUnknownTier is returned when a tier name has no catalog entry.
var ErrUnknownTier = errors.New("unknown tier")

// Config is the immutable limit bundle for one tier.
//
// All limits are inclusive ceilings: usage exactly at a limit is still
// within quota, only strictly exceeding it is a violation. Limits are
// expected to satisfy PerRequestMaxTokens <= HourlyMaxTokens <=
// DailyMaxTokens; a tier that doesn't is a deployment mistake, not
// something the catalog enforces.
type Config struct {
	// Name is the tier name this config was registered under.
	Name string

	// DailyMaxRequests is the request cap for the UTC calendar day.
	DailyMaxRequests int64

	// DailyMaxTokens is the token cap for the UTC calendar day.
	DailyMaxTokens int64

	// DailyMaxCostUSD is the cost cap in USD for the UTC calendar day.
	DailyMaxCostUSD float64

	// HourlyMaxRequests is the request cap for the UTC calendar hour.
	HourlyMaxRequests int64

	// HourlyMaxTokens is the token cap for the UTC calendar hour.
	HourlyMaxTokens int64

	// HourlyMaxCostUSD is the cost cap in USD for the UTC calendar hour.
	HourlyMaxCostUSD float64

	// PerRequestMaxTokens caps the token estimate of a single request.
	PerRequestMaxTokens int64
}

// catalog holds the built-in tiers.
var catalog = map[string]Config{
	"free": {
		Name:                "free",
		DailyMaxRequests:    50,
		DailyMaxTokens:      25000,
		DailyMaxCostUSD:     0.25,
		HourlyMaxRequests:   10,
		HourlyMaxTokens:     5000,
		HourlyMaxCostUSD:    0.05,
		PerRequestMaxTokens: 2000,
	},
	"economy": {
		Name:                "economy",
		DailyMaxRequests:    200,
		DailyMaxTokens:      100000,
		DailyMaxCostUSD:     1.00,
		HourlyMaxRequests:   40,
		HourlyMaxTokens:     20000,
		HourlyMaxCostUSD:    0.20,
		PerRequestMaxTokens: 4000,
	},
	"standard": {
		Name:                "standard",
		DailyMaxRequests:    1000,
		DailyMaxTokens:      500000,
		DailyMaxCostUSD:     5.00,
		HourlyMaxRequests:   200,
		HourlyMaxTokens:     100000,
		HourlyMaxCostUSD:    1.00,
		PerRequestMaxTokens: 8000,
	},
	"premium": {
		Name:                "premium",
		DailyMaxRequests:    5000,
		DailyMaxTokens:      2500000,
		DailyMaxCostUSD:     25.00,
		HourlyMaxRequests:   1000,
		HourlyMaxTokens:     500000,
		HourlyMaxCostUSD:    5.00,
		PerRequestMaxTokens: 16000,
	},
}

// Lookup returns the config for a tier name.
func Lookup(name string) (Config, bool) {
	cfg, ok := catalog[name]
	return cfg, ok
}

// Names returns the known tier names in alphabetical order.
// Useful for config validation error messages.
func Names() []string {
	names := make([]string, 0, len(catalog))
	for name := range catalog {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
