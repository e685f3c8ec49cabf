package job

import "errors"

var (
	// ErrInvalidDescriptor marks malformed job input rejected at submission.
	ErrInvalidDescriptor = errors.New("invalid descriptor")
	// ErrUnsupportedExtension marks an extension with no output suffix mapping.
	ErrUnsupportedExtension = errors.New("unsupported extension")
	// ErrIllegalTransition is returned when a state change would break the job state machine.
	ErrIllegalTransition = errors.New("illegal job state transition")
)
