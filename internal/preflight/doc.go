// Package preflight provides readiness checks for the filesystem paths and
// external services convoy depends on.
//
// These checks run in two contexts:
//   - The orchestrator calls EnsureWritableDir on every submission; a failure
//     rejects the whole batch before any job is created.
//   - The CLI "convoy check" command uses RunAll and CheckSystemDeps to display
//     directory, binary, and ntfy health.
//
// LockOutputDir guards an output directory against concurrent convoy runs.
package preflight
