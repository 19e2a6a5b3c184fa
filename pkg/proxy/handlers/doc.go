// Package handlers implements the service's own HTTP endpoints: the
// usage summary, circuit breaker inspection and control, and health.
// Proxied LLM traffic does not pass through this package; it goes
// through the middleware chain into the reverse proxy.
package handlers
