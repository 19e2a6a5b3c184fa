// Package ledger provides time-bucketed usage accounting for the quota
// governor.
//
// # Buckets
//
// Usage is counted in two calendar windows: the current UTC hour and the
// current UTC date. Each window maps to a bucket key derived from the
// wall clock ("hour:2026-08-31T14", "day:2026-08-31"), and the ledger
// always addresses the record for the current key. Rollover therefore
// needs no reset write at all: when the hour or date changes, the ledger
// simply starts reading and incrementing a fresh key, and the previous
// record is never touched again. An absent record is a zero bucket.
//
// This keying makes rollover lazy, idempotent, and immune to the
// concurrent double-reset hazard: there is nothing to reset.
//
// # Failure semantics
//
// Reads fail open: a backend error during Peek is logged and reported as
// an empty bucket so a storage hiccup cannot block all traffic. Writes
// fail closed: Apply retries a failed increment once and then surfaces
// the error, because a silently lost write under-counts usage and erodes
// the protection the ledger exists to provide.
package ledger
