// Package pricing converts (model, token count) pairs into estimated USD
// cost using a per-model rate table.
//
// Model identifiers form a closed set (ModelID) with an explicit Unknown
// member. Raw model strings from request bodies are resolved exactly once
// at the transport boundary via ParseModel; everything downstream works
// with the enum, never with substring matching.
//
// Cost estimation is a pure lookup with no error path: an unknown model
// is priced at the default rate rather than rejected. Rejecting requests
// is the governor's job, not the rate table's.
package pricing
