// Package logging configures structured logging for the gateway.
// All packages log through log/slog; this package owns handler
// construction (level, format, source annotation) and installs the
// process default at startup.
package logging
