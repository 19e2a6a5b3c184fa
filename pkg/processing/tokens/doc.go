// Package tokens estimates token usage for chat completion requests
// before they are sent upstream.
//
// Admission control needs a token figure at request time, before the
// upstream provider has counted anything. The estimator uses a simple
// characters-per-token ratio (roughly 4 characters per token for the
// supported model families), which lands within a few percent of actual
// usage and costs well under a millisecond per request.
//
// The estimate deliberately leans high rather than low: completion
// tokens are taken from the request's max_tokens when present, or a
// configured default otherwise. Over-estimating a request risks a
// premature denial; under-estimating risks blowing the budget.
package tokens
