package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"convoy/internal/batch"
	"convoy/internal/engine"
	"convoy/internal/events"
	"convoy/internal/job"
	"convoy/internal/limiter"
	"convoy/internal/logging"
	"convoy/internal/preflight"
	"convoy/internal/services"
)

// DefaultMaxConcurrentJobs is used when Options.MaxConcurrentJobs is zero.
const DefaultMaxConcurrentJobs = 4

// Options configures an Orchestrator.
type Options struct {
	MaxConcurrentJobs int
	Engine            engine.Engine
	Logger            *slog.Logger
	// Bus receives job events. A private bus is created when nil.
	Bus *events.Bus
	// ProgressBucket and ProgressInterval throttle progress log lines; they
	// do not affect Progress events.
	ProgressBucket   float64
	ProgressInterval time.Duration
}

// Orchestrator schedules batches of jobs against an engine with bounded
// concurrency. Submitting a new batch supersedes the previous one.
type Orchestrator struct {
	engine  engine.Engine
	limiter *limiter.Limiter
	bus     *events.Bus
	logger  *slog.Logger
	seq     *batch.Sequencer

	progressBucket   float64
	progressInterval time.Duration

	mu       sync.Mutex
	disposed bool
	// active maps an identity to its newest unfinished job; inflight holds
	// every unfinished job by ID, including superseded ones winding down.
	active   map[job.Identity]*activeJob
	inflight map[string]*activeJob
	wg       sync.WaitGroup
}

// activeJob tracks an unfinished job. done closes once the job is terminal.
// after, when set, is the done channel of a superseded job with the same
// identity; the runner waits on it before starting so two engine runs never
// write the same output file.
type activeJob struct {
	job   *job.Job
	token *batch.Token
	done  chan struct{}
	after <-chan struct{}
}

// New constructs an orchestrator.
func New(opts Options) (*Orchestrator, error) {
	if opts.Engine == nil {
		return nil, errors.New("orchestrator: engine required")
	}
	capacity := opts.MaxConcurrentJobs
	if capacity == 0 {
		capacity = DefaultMaxConcurrentJobs
	}
	lim, err := limiter.New(capacity)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	bus := opts.Bus
	if bus == nil {
		bus = events.NewBus(logger)
	}
	return &Orchestrator{
		engine:           opts.Engine,
		limiter:          lim,
		bus:              bus,
		logger:           logger,
		seq:              batch.NewSequencer(context.Background()),
		progressBucket:   opts.ProgressBucket,
		progressInterval: opts.ProgressInterval,
		active:           make(map[job.Identity]*activeJob),
		inflight:         make(map[string]*activeJob),
	}, nil
}

// Bus returns the event bus jobs publish to.
func (o *Orchestrator) Bus() *events.Bus { return o.bus }

// Subscribe registers an observer on the orchestrator's bus.
func (o *Orchestrator) Subscribe(observer events.Observer, types ...events.Type) func() {
	return o.bus.Subscribe(observer, types...)
}

// MaxConcurrentJobs reports the concurrency bound.
func (o *Orchestrator) MaxConcurrentJobs() int { return o.limiter.Capacity() }

// Running reports how many jobs currently hold a permit.
func (o *Orchestrator) Running() int { return o.limiter.InUse() }

// Submit validates descriptors, supersedes the previous batch when at least
// one job is accepted, and starts one runner per accepted job. It returns
// without waiting for any job. Per-descriptor problems are reported through
// BatchHandle.Rejected and Rejected events; only ErrDisposed and
// ErrInvalidOutputTarget fail the whole call.
func (o *Orchestrator) Submit(ctx context.Context, descriptors []job.Descriptor, outputDir string) (*BatchHandle, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if o.isDisposed() {
		return nil, ErrDisposed
	}
	if len(descriptors) == 0 {
		return newSettledHandle(nil), nil
	}

	outputDir = strings.TrimSpace(outputDir)
	if err := preflight.EnsureWritableDir(outputDir); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidOutputTarget, err)
	}
	outputDir = filepath.Clean(outputDir)

	logger := logging.NewComponentLogger(logging.WithContext(ctx, o.logger), "orchestrator")

	o.mu.Lock()
	if o.disposed {
		o.mu.Unlock()
		return nil, ErrDisposed
	}
	accepted, rejected := o.partitionLocked(descriptors)
	if len(accepted) == 0 {
		o.mu.Unlock()
		o.publishRejections(logger, rejected)
		return newSettledHandle(rejected), nil
	}
	token, err := o.seq.Next()
	if err != nil {
		o.mu.Unlock()
		return nil, ErrDisposed
	}
	jobs := make([]*job.Job, 0, len(accepted))
	tracked := make([]*activeJob, 0, len(accepted))
	for _, d := range accepted {
		j := job.New(token.ID(), token.Epoch(), d, outputDir)
		a := &activeJob{job: j, token: token, done: make(chan struct{})}
		if prev, ok := o.active[d.Identity()]; ok {
			a.after = prev.done
		}
		o.active[d.Identity()] = a
		o.inflight[j.ID()] = a
		jobs = append(jobs, j)
		tracked = append(tracked, a)
	}
	handle := newHandle(token, jobs, rejected)
	o.wg.Add(len(tracked))
	o.mu.Unlock()

	o.publishRejections(logger, rejected)
	logger.Info("batch submitted",
		logging.String(logging.FieldEventType, "batch_submitted"),
		logging.String(logging.FieldBatchID, token.ID()),
		logging.Uint64(logging.FieldEpoch, token.Epoch()),
		logging.Int("accepted", len(jobs)),
		logging.Int("rejected", len(rejected)),
		logging.String("output_dir", outputDir),
		logging.Int("max_concurrent_jobs", o.limiter.Capacity()),
	)

	for _, a := range tracked {
		go o.run(token, handle, a)
	}
	return handle, nil
}

// partitionLocked splits descriptors into accepted and rejected. A repeat of
// an earlier descriptor in the same call is a duplicate. Identities held by
// the live batch are duplicates only when every candidate is one: otherwise
// the call supersedes that batch and takes its overlapping jobs over.
// Identities of cancelled or superseded batches never block.
func (o *Orchestrator) partitionLocked(descriptors []job.Descriptor) ([]job.Descriptor, []Rejection) {
	candidates := make([]int, 0, len(descriptors))
	var rejected []Rejection
	seen := make(map[job.Identity]struct{}, len(descriptors))
	supersedes := false
	for i, d := range descriptors {
		if err := d.Validate(); err != nil {
			rejected = append(rejected, Rejection{Index: i, Descriptor: d, Err: err})
			continue
		}
		id := d.Identity()
		if _, dup := seen[id]; dup {
			rejected = append(rejected, duplicate(i, d))
			continue
		}
		seen[id] = struct{}{}
		candidates = append(candidates, i)
		if !o.heldByLiveBatchLocked(id) {
			supersedes = true
		}
	}

	accepted := make([]job.Descriptor, 0, len(candidates))
	for _, i := range candidates {
		if !supersedes {
			rejected = append(rejected, duplicate(i, descriptors[i]))
			continue
		}
		accepted = append(accepted, descriptors[i])
	}
	slices.SortFunc(rejected, func(a, b Rejection) int { return a.Index - b.Index })
	return accepted, rejected
}

func (o *Orchestrator) heldByLiveBatchLocked(id job.Identity) bool {
	a, ok := o.active[id]
	return ok && !a.token.Cancelled()
}

func duplicate(index int, d job.Descriptor) Rejection {
	return Rejection{
		Index:      index,
		Descriptor: d,
		Err:        fmt.Errorf("%w: %s", ErrDuplicateJob, d.FileName()),
	}
}

func (o *Orchestrator) publishRejections(logger *slog.Logger, rejected []Rejection) {
	for _, r := range rejected {
		logging.WarnWithContext(logger, "job rejected", "job_rejected",
			logging.Int("index", r.Index),
			logging.String("title", r.Descriptor.Title()),
			logging.String("source", r.Descriptor.SourceRef()),
			logging.Error(r.Err),
			logging.String(logging.FieldErrorHint, rejectionHint(r.Err)),
			logging.String(logging.FieldImpact, "descriptor skipped; the rest of the batch continues"),
		)
		o.bus.Publish(events.Event{
			Type:    events.TypeRejected,
			Job:     job.Snapshot{Descriptor: r.Descriptor},
			Message: r.Err.Error(),
			Err:     r.Err,
		})
	}
}

func rejectionHint(err error) string {
	if errors.Is(err, ErrDuplicateJob) {
		return "wait for the running job to finish or cancel it first"
	}
	return "fix the job entry and resubmit"
}

// CancelAll cancels the current batch and returns immediately. Jobs still
// waiting for a permit end Cancelled without starting; running jobs see
// their engine context cancelled.
func (o *Orchestrator) CancelAll() {
	token := o.seq.Current()
	if token == nil {
		return
	}
	token.RequestCancel()
	logging.NewComponentLogger(o.logger, "orchestrator").Info("cancel requested",
		logging.String(logging.FieldEventType, "batch_cancel_requested"),
		logging.String(logging.FieldBatchID, token.ID()),
		logging.Uint64(logging.FieldEpoch, token.Epoch()),
	)
}

// Dispose cancels the live batch, refuses further submissions, and waits for
// every runner to return or ctx to end. Calls after the first return nil
// immediately.
func (o *Orchestrator) Dispose(ctx context.Context) error {
	o.mu.Lock()
	if o.disposed {
		o.mu.Unlock()
		return nil
	}
	o.disposed = true
	o.mu.Unlock()

	o.seq.Close()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("dispose: %w", context.Cause(ctx))
	}
}

func (o *Orchestrator) isDisposed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.disposed
}

// Jobs returns snapshots of every job that has not reached a terminal state,
// across all batches, oldest first.
func (o *Orchestrator) Jobs() []job.Snapshot {
	o.mu.Lock()
	snaps := make([]job.Snapshot, 0, len(o.inflight))
	for _, a := range o.inflight {
		snaps = append(snaps, a.job.Snapshot())
	}
	o.mu.Unlock()
	slices.SortFunc(snaps, func(a, b job.Snapshot) int {
		if c := a.QueuedAt.Compare(b.QueuedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return snaps
}

// release forgets a finished job and wakes a successor waiting on its
// identity. It must be called exactly once per job.
func (o *Orchestrator) release(a *activeJob) {
	id := a.job.Descriptor().Identity()
	o.mu.Lock()
	delete(o.inflight, a.job.ID())
	if o.active[id] == a {
		delete(o.active, id)
	}
	o.mu.Unlock()
	close(a.done)
}

func jobContext(token *batch.Token, j *job.Job) context.Context {
	ctx := token.Context()
	ctx = services.WithBatchID(ctx, token.ID())
	ctx = services.WithEpoch(ctx, token.Epoch())
	return services.WithJobID(ctx, j.ID())
}
