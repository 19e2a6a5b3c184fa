// Package server assembles the HTTP server: the governed reverse proxy
// to the upstream LLM API, the usage and breaker endpoints, health, and
// metrics. It owns listener lifecycle and graceful shutdown.
package server
