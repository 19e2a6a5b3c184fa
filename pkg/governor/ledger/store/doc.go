// Package store provides persistence backends for usage bucket records
// and circuit breaker state.
//
// # Backends
//
// Three backends are available:
//
//   - MemoryBackend: in-process map, no persistence. Default.
//   - SQLiteBackend: durable single-instance storage using modernc.org/sqlite
//     with WAL journaling and atomic upsert-increments.
//   - RedisBackend: shared storage for multi-replica deployments, using
//     native hash increments for atomicity across processes.
//
// # Atomicity
//
// The central contract of this package is that Increment is an atomic
// read-modify-write for a single bucket key. Two concurrent increments
// against the same key must both be reflected in the stored record; a
// load-compute-store sequence is not an acceptable implementation.
//
// # Keying
//
// Bucket records are addressed by opaque string keys supplied by the
// caller (the ledger derives them from the wall clock, e.g.
// "hour:2026-08-31T14"). A missing record is reported as nil, never as an
// error: callers treat absence as a zero-valued bucket.
package store
