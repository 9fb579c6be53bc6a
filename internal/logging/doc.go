// Package logging builds the slog loggers used across Fieldsync.
//
// It provides console and JSON handlers behind a single Options surface,
// config-driven construction, attribute helpers, standardized field keys,
// and a no-op logger for tests.
package logging
