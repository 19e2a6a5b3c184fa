// Package logging configures structured logging for the service.
//
// All components log through log/slog. This package owns handler
// construction (level, format, output) and the context plumbing that
// carries a request-scoped logger through middleware into handlers.
package logging
