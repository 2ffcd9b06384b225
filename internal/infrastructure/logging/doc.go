// Package logging provides the structured logger used across the relay.
//
// It is a thin wrapper over log/slog that applies configuration-driven
// level, format and destination, plus default service/version attributes.
// Components receive a *Logger by injection; there is no package-level
// global logger.
package logging
