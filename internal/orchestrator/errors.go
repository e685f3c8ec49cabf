package orchestrator

import (
	"errors"

	"convoy/internal/job"
)

var (
	// ErrDisposed is returned by Submit after Dispose.
	ErrDisposed = errors.New("orchestrator disposed")
	// ErrInvalidOutputTarget rejects a whole submission whose output directory
	// cannot be created or written.
	ErrInvalidOutputTarget = errors.New("invalid output target")
	// ErrInvalidDescriptor rejects a single malformed descriptor.
	ErrInvalidDescriptor = job.ErrInvalidDescriptor
	// ErrDuplicateJob rejects a descriptor whose identity is already active.
	ErrDuplicateJob = errors.New("duplicate job")
	// ErrEngineFailure marks an engine run that panicked.
	ErrEngineFailure = errors.New("engine failure")
)

// Rejection records a descriptor dropped at submission.
type Rejection struct {
	// Index is the descriptor's position in the submitted slice.
	Index      int
	Descriptor job.Descriptor
	Err        error
}
