// Package orchestrator runs batches of conversion jobs against an engine.
//
// Submit validates descriptors, rejects repeats within the call, supersedes
// the previous batch, and starts one runner goroutine per accepted job. A call
// whose every valid descriptor is already running in the live batch is
// rejected as duplicates and leaves that batch alone. Runners share a fixed pool of permits, so at most
// MaxConcurrentJobs engine invocations are in flight. Each job emits Started,
// zero or more Progress, and exactly one terminal event (Completed, Cancelled
// or Failed) on the bus; a job cancelled before it obtained a permit emits
// only Cancelled. One job's failure never affects its siblings.
//
// Superseding is cooperative: the old batch's token is cancelled and its
// runners finish on their own. Until they do they still hold permits, so the
// new batch may briefly run below full concurrency. A job the new batch shares
// with the old one waits for the old run to stop before it starts, so both
// never write the same output file.
package orchestrator
