// Package logging assembles structured slog loggers and formatting helpers used
// across Splintarr.
//
// It owns the configurable console/JSON handlers, the rotating log file sink,
// and the middleware handlers that every record passes through: sensitive
// value redaction, long value truncation, and time-windowed suppression of
// repeated errors. Context-aware helpers tag log lines with history IDs,
// instance IDs, and request IDs. A no-op logger is provided for tests and
// wiring code that cannot fail.
//
// Prefer these constructors over hand-rolled slog setup so new components emit
// data with the same shape and routing guarantees as the rest of the system.
package logging
