package engine

import (
	"context"
	"errors"
	"time"
)

// ErrCancelled marks an engine run that stopped because its context was
// cancelled rather than because the conversion failed.
var ErrCancelled = errors.New("engine: cancelled")

// Request describes one conversion.
type Request struct {
	Source     string
	OutputPath string
	AudioOnly  bool
}

// Progress is a single progress report from a running conversion. Percent is
// unclamped; Elapsed and Total are media positions, not wall-clock time.
type Progress struct {
	Percent float64
	Elapsed time.Duration
	Total   time.Duration
}

// ProgressFunc receives progress reports on the invoking goroutine.
type ProgressFunc func(Progress)

// Engine converts a source into OutputPath. Invoke blocks until the
// conversion finishes, fails, or ctx is cancelled; on cancellation it must
// return an error for which IsCancellation reports true.
type Engine interface {
	Invoke(ctx context.Context, req Request, progress ProgressFunc) error
}

// Func adapts a plain function to the Engine interface.
type Func func(ctx context.Context, req Request, progress ProgressFunc) error

// Invoke calls f.
func (f Func) Invoke(ctx context.Context, req Request, progress ProgressFunc) error {
	return f(ctx, req, progress)
}

// IsCancellation reports whether err describes a cancelled run.
func IsCancellation(err error) bool {
	return errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled)
}

// Cancelled wraps the cancellation cause of ctx with ErrCancelled.
func Cancelled(ctx context.Context) error {
	if cause := context.Cause(ctx); cause != nil {
		return errors.Join(ErrCancelled, cause)
	}
	return ErrCancelled
}
