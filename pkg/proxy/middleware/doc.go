// Package middleware provides the HTTP middleware chain in front of the
// upstream proxy.
//
// The chain, outermost first: request ID, recovery, logging, admission.
// Admission is the interesting one: it estimates a request's token usage
// from the body, asks the governor for a decision, rejects over-quota
// traffic with 429 before any upstream cost is incurred, and records
// usage for requests that went through.
package middleware
