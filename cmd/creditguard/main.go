// Creditguard is an admission-controlled proxy for metered LLM APIs.
//
// It sits in front of an upstream LLM API and enforces per-tier usage
// quotas: request, token and cost limits per hour and per day, a
// per-request token cap, and a circuit breaker that halts traffic when
// daily spend approaches its limit.
//
// Usage:
//
//	# Start with a configuration file
//	creditguard run --config /etc/creditguard/config.yaml
//
//	# Validate configuration without starting
//	creditguard run --dry-run
//
//	# Show version information
//	creditguard version
package main

func main() {
	Execute()
}
