// Package breaker implements the governor's circuit breaker: a binary
// Open/Closed safety state that, once tripped, denies all admission until
// a cooldown elapses, independent of per-request quota math.
//
// The breaker is lazily evaluated. No background timer ticks it closed;
// every Check recomputes whether the cooldown has elapsed and clears the
// open state as a side effect. It is a self-healing cycle, not a
// terminal machine: after cooldown it reports closed until re-tripped.
package breaker
