package governor

import "time"

// Reason codes carried by admission denials. Callers branch on these on
// every request, so they are ordinary values, never errors.
const (
	// ReasonCircuitBreakerActive denies because the breaker is open.
	ReasonCircuitBreakerActive = "circuit_breaker_active"

	// ReasonPerRequestLimit denies because the token estimate exceeds
	// the tier's per-request cap.
	ReasonPerRequestLimit = "per_request_limit_exceeded"
)

// Dimension names a quota dimension inside a window.
type Dimension string

const (
	// DimensionRequests is the request count dimension.
	DimensionRequests Dimension = "requests"

	// DimensionTokens is the token count dimension.
	DimensionTokens Dimension = "tokens"

	// DimensionCost is the USD cost dimension.
	DimensionCost Dimension = "cost"
)

// HourlyLimitReason builds the reason code for an hourly limit denial.
func HourlyLimitReason(d Dimension) string {
	return "hourly_limit_exceeded:" + string(d)
}

// DailyLimitReason builds the reason code for a daily limit denial.
func DailyLimitReason(d Dimension) string {
	return "daily_limit_exceeded:" + string(d)
}

// Decision is the outcome of an admission check.
type Decision struct {
	// Allowed indicates if the request may proceed.
	Allowed bool

	// Code is the machine-readable reason code, empty when allowed.
	Code string

	// Message is the human-readable denial reason, empty when allowed.
	Message string

	// RetryAfter suggests how long to wait before retrying a denied
	// request (breaker cooldown remainder, or time to bucket rollover).
	RetryAfter time.Duration

	// Usage is the usage snapshot at decision time.
	Usage *Snapshot
}

// Snapshot is the read-only usage view for dashboards and HTTP error
// bodies. The JSON shape is a stable contract.
type Snapshot struct {
	// Tier is the tier name this governor enforces.
	Tier string `json:"tier"`

	// Daily is the current UTC calendar day's status.
	Daily WindowStatus `json:"daily"`

	// Hourly is the current UTC calendar hour's status.
	Hourly WindowStatus `json:"hourly"`

	// CircuitBreaker is the breaker state at snapshot time.
	CircuitBreaker BreakerStatus `json:"circuit_breaker"`
}

// WindowStatus pairs a window's usage with its limits and percentages.
type WindowStatus struct {
	// Usage is the recorded usage in the window.
	Usage Usage `json:"usage"`

	// Limits is the tier's limits for the window.
	Limits Limits `json:"limits"`

	// Percentages is usage/limit*100 per dimension, clamped at 999.9
	// for display.
	Percentages Percentages `json:"percentages"`
}

// Usage holds the recorded counters for one window.
type Usage struct {
	Requests int64   `json:"requests"`
	Tokens   int64   `json:"tokens"`
	Cost     float64 `json:"cost"`
}

// Limits holds the tier limits for one window.
type Limits struct {
	Requests int64   `json:"requests"`
	Tokens   int64   `json:"tokens"`
	Cost     float64 `json:"cost"`
}

// Percentages holds usage as a percentage of each limit.
type Percentages struct {
	Requests float64 `json:"requests"`
	Tokens   float64 `json:"tokens"`
	Cost     float64 `json:"cost"`
}

// BreakerStatus is the breaker portion of a snapshot.
type BreakerStatus struct {
	Active bool   `json:"active"`
	Reason string `json:"reason"`
}

// maxDisplayPercent caps reported percentages. Usage can legitimately
// exceed limits (reconciliation records bypass admission), but
// dashboards don't need five-digit percentages.
const maxDisplayPercent = 999.9

// percentage computes used/limit*100 clamped to the display ceiling.
func percentage(used, limit float64) float64 {
	if limit <= 0 {
		return 0
	}
	p := used / limit * 100
	if p > maxDisplayPercent {
		p = maxDisplayPercent
	}
	return p
}
