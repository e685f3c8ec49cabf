// Package logging assembles structured slog loggers and formatting helpers used
// across convoy.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so runner code can tag log lines
// with batch IDs, epochs, and job IDs. The package also provides a no-op logger
// for tests and wiring code that cannot fail, and a progress sampler that keeps
// per-job progress logging readable.
package logging
