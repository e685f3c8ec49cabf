// Package notifications pushes job failures and batch completions to ntfy.
//
// NewService returns a noop implementation when no topic is configured, so
// callers always hold a usable Service. Observer adapts a Service to the event
// bus and sends from its own goroutine.
package notifications
