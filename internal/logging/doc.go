// Package logging assembles structured slog loggers and formatting helpers used
// across the flux client.
//
// It owns the console/JSON handlers, centralizes level and output plumbing,
// and exposes context-aware helpers so operation code automatically tags log
// lines with the operation kind and correlation ID. The package also provides
// a no-op logger for tests and wiring code that cannot fail.
//
// Prefer these constructors over hand-rolled slog setup so new components emit
// data with the same shape as the rest of the client.
package logging
