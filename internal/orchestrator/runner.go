package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"convoy/internal/batch"
	"convoy/internal/engine"
	"convoy/internal/events"
	"convoy/internal/job"
	"convoy/internal/logging"
	"convoy/internal/services"
)

// runner drives one job from pending to a terminal state. Event emission for
// the job is serialized by mu so Progress never follows the terminal event.
type runner struct {
	o      *Orchestrator
	token  *batch.Token
	handle *BatchHandle
	active *activeJob
	job    *job.Job
	logger *slog.Logger

	mu       sync.Mutex
	sampler  *logging.ProgressSampler
	released bool
}

func (o *Orchestrator) run(token *batch.Token, handle *BatchHandle, a *activeJob) {
	defer o.wg.Done()

	j := a.job
	ctx := jobContext(token, j)
	r := &runner{
		o:       o,
		token:   token,
		handle:  handle,
		active:  a,
		job:     j,
		logger:  logging.NewComponentLogger(logging.WithContext(ctx, o.logger), "runner"),
		sampler: logging.NewProgressSampler(o.progressBucket, o.progressInterval),
	}
	defer r.settle()
	defer r.release()

	if a.after != nil {
		select {
		case <-a.after:
		case <-ctx.Done():
			r.logger.Debug("job cancelled while a superseded run of it was stopping", logging.Any("cause", token.Cause()))
			r.finish(job.StateCancelled, "", nil)
			return
		}
	}

	permit, err := o.limiter.Acquire(ctx)
	if err != nil {
		r.logger.Debug("job cancelled before start", logging.Error(err))
		r.finish(job.StateCancelled, "", nil)
		return
	}
	defer permit.Release()

	var startErr error
	admitted := token.Admit(func() {
		startErr = j.Start(time.Now())
	})
	if !admitted || startErr != nil {
		r.logger.Debug("job cancelled before start", logging.Any("cause", token.Cause()))
		r.finish(job.StateCancelled, "", nil)
		return
	}

	desc := j.Descriptor()
	r.logger.Info("job started",
		logging.String(logging.FieldEventType, "job_started"),
		logging.String("title", desc.Title()),
		logging.String("source", desc.SourceRef()),
		logging.String("output_path", j.OutputPath()),
		logging.Int("running", o.limiter.InUse()),
	)
	o.bus.Publish(events.Event{Type: events.TypeStarted, Job: j.Snapshot(), BatchID: j.BatchID()})

	invokeErr := r.invoke(ctx)
	switch {
	case invokeErr == nil:
		r.finish(job.StateCompleted, "", nil)
	case engine.IsCancellation(invokeErr) || token.Cancelled():
		r.finish(job.StateCancelled, "", invokeErr)
	default:
		r.finish(job.StateFailed, failureMessage(invokeErr), invokeErr)
	}
}

// invoke calls the engine, converting a panic into a failure.
func (r *runner) invoke(ctx context.Context) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: engine panicked: %v", ErrEngineFailure, rec)
		}
	}()
	req := engine.Request{
		Source:     r.job.Descriptor().SourceRef(),
		OutputPath: r.job.OutputPath(),
		AudioOnly:  r.job.Descriptor().AudioOnly(),
	}
	return r.o.engine.Invoke(ctx, req, r.progress)
}

func (r *runner) progress(p engine.Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.job.RecordProgress(job.Progress{Percent: p.Percent, Elapsed: p.Elapsed, Total: p.Total})
	if !ok {
		return
	}
	r.o.bus.Publish(events.Event{
		Type:    events.TypeProgress,
		Job:     r.job.Snapshot(),
		BatchID: r.job.BatchID(),
		Percent: stored.Percent,
		Elapsed: stored.Elapsed,
		Total:   stored.Total,
	})
	if r.sampler.ShouldLog(stored.Percent) {
		r.logger.Info("job progress",
			logging.String(logging.FieldEventType, "job_progress"),
			logging.Float64("percent", stored.Percent),
			logging.Duration("position", stored.Elapsed),
			logging.Duration("total", stored.Total),
		)
	}
}

// finish records the terminal state, frees the job's identity, and emits the
// terminal event.
func (r *runner) finish(state job.State, failure string, cause error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.job.Finish(state, time.Now(), failure); err != nil {
		r.logger.Error("job state transition rejected",
			logging.Error(err),
			logging.String(logging.FieldEventType, "job_transition_invalid"),
			logging.String(logging.FieldErrorHint, "report this as a bug"),
		)
		return
	}
	r.release()

	snap := r.job.Snapshot()
	evt := events.Event{Job: snap, BatchID: snap.BatchID, Elapsed: snap.Elapsed, Err: cause}
	switch state {
	case job.StateCompleted:
		evt.Type = events.TypeCompleted
		evt.OutputPath = snap.OutputPath
		r.logger.Info("job completed",
			logging.String(logging.FieldEventType, "job_completed"),
			logging.String("output_path", snap.OutputPath),
			logging.Duration("job_duration", snap.Elapsed),
		)
	case job.StateCancelled:
		evt.Type = events.TypeCancelled
		evt.Err = nil
		r.logger.Info("job cancelled",
			logging.String(logging.FieldEventType, "job_cancelled"),
			logging.Bool("started", !snap.StartedAt.IsZero()),
			logging.Any("cause", r.token.Cause()),
		)
	case job.StateFailed:
		evt.Type = events.TypeFailed
		evt.Message = failure
		logging.ErrorWithContext(r.logger, "job failed", "job_failed",
			logging.Error(cause),
			logging.String("error_message", failure),
			logging.String(logging.FieldErrorHint, services.FailureHint(cause)),
			logging.Alert("job_failure"),
			logging.Duration("job_duration", snap.Elapsed),
		)
	}
	r.o.bus.Publish(evt)
}

// release frees the job's identity once. It runs from finish and again on
// return in case finish rejected the transition.
func (r *runner) release() {
	if r.released {
		return
	}
	r.released = true
	r.o.release(r.active)
}

// settle counts the job against its batch and announces the batch once the
// last job is terminal.
func (r *runner) settle() {
	if !r.handle.jobDone() {
		return
	}
	summary := r.handle.Summary()
	r.logger.Info("batch settled",
		logging.String(logging.FieldEventType, "batch_settled"),
		logging.Int("completed", summary.Completed),
		logging.Int("cancelled", summary.Cancelled),
		logging.Int("failed", summary.Failed),
		logging.Int("rejected", summary.Rejected),
	)
	r.o.bus.Publish(events.Event{
		Type:    events.TypeBatchSettled,
		BatchID: r.handle.ID(),
		Message: summary.String(),
		Counts:  summary.Counts(),
	})
	r.handle.markSettled()
}

func failureMessage(err error) string {
	if err == nil {
		return "engine failed without error detail"
	}
	if message := strings.TrimSpace(err.Error()); message != "" {
		return message
	}
	return "engine failed"
}
