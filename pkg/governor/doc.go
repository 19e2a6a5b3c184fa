// Package governor implements admission control and circuit breaking for
// a metered LLM-calling service.
//
// # Overview
//
// A Governor owns one tier's limit bundle, a time-bucketed usage ledger,
// a per-model cost table, and a circuit breaker, and composes them into
// three operations:
//
//   - CanAdmit: read-only admission decision for a (token estimate, model)
//     pair, checked against the breaker, the per-request token cap, and
//     the hourly and daily request/token/cost limits.
//   - RecordUsage: commit a request's usage (+1 request, +tokens, +cost)
//     to both windows, then apply the daily-cost auto-trip rule.
//   - Summary: the read-only usage view served to dashboards.
//
// # Construction
//
// Governors are constructed explicitly and passed to their callers;
// there is no ambient singleton. An unknown tier name fails construction
// with tiers.ErrUnknownTier.
//
// # Concurrency
//
// All operations are safe for concurrent use from many request-handling
// goroutines, and across processes when the backing store is shared.
// Admission decisions are consistent with the latest committed counter
// state at decision time; slight staleness under concurrency is accepted
// by design (best-effort protection, not distributed transactions).
package governor
