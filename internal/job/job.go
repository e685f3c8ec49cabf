package job

import (
	"fmt"
	"math"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Progress is the last progress signal recorded for a job.
type Progress struct {
	Percent float64
	Elapsed time.Duration
	Total   time.Duration
}

// Job is one scheduled execution of a Descriptor. Only the runner that owns
// the job calls the mutating methods; observers use Snapshot.
type Job struct {
	id         string
	batchID    string
	epoch      uint64
	descriptor Descriptor
	outputDir  string
	outputPath string

	mu         sync.RWMutex
	state      State
	queuedAt   time.Time
	startedAt  time.Time
	finishedAt time.Time
	progress   *Progress
	failure    string
}

// New creates a pending job for descriptor in outputDir.
func New(batchID string, epoch uint64, descriptor Descriptor, outputDir string) *Job {
	return &Job{
		id:         uuid.NewString(),
		batchID:    batchID,
		epoch:      epoch,
		descriptor: descriptor,
		outputDir:  outputDir,
		outputPath: filepath.Join(outputDir, descriptor.FileName()),
		state:      StatePending,
		queuedAt:   time.Now(),
	}
}

func (j *Job) ID() string { return j.id }
func (j *Job) BatchID() string { return j.batchID }
func (j *Job) Epoch() uint64 { return j.epoch }
func (j *Job) Descriptor() Descriptor { return j.descriptor }
func (j *Job) OutputDir() string { return j.outputDir }
func (j *Job) OutputPath() string { return j.outputPath }

// State returns the current state.
func (j *Job) State() State {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.state
}

// Start moves the job from pending to running.
func (j *Job) Start(now time.Time) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.transitionLocked(StateRunning); err != nil {
		return err
	}
	j.startedAt = now
	return nil
}

// RecordProgress stores a progress signal while the job is running. The
// percentage is clamped to [0,100]. It returns the stored value and false when
// the job is not running.
func (j *Job) RecordProgress(p Progress) (Progress, bool) {
	p.Percent = ClampPercent(p.Percent)
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state != StateRunning {
		return p, false
	}
	stored := p
	j.progress = &stored
	return p, true
}

// Finish moves the job into a terminal state. failure is kept for
// StateFailed only.
func (j *Job) Finish(state State, now time.Time, failure string) error {
	if !state.IsTerminal() {
		return fmt.Errorf("%w: %s is not terminal", ErrIllegalTransition, state)
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.transitionLocked(state); err != nil {
		return err
	}
	j.finishedAt = now
	if state == StateFailed {
		j.failure = failure
	}
	return nil
}

func (j *Job) transitionLocked(next State) error {
	if !j.state.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, j.state, next)
	}
	j.state = next
	return nil
}

// Snapshot is a point-in-time copy of a job safe to hand to observers.
type Snapshot struct {
	ID         string
	BatchID    string
	Epoch      uint64
	Descriptor Descriptor
	OutputPath string
	State      State
	QueuedAt   time.Time
	StartedAt  time.Time
	FinishedAt time.Time
	Elapsed    time.Duration
	Progress   *Progress
	Failure    string
}

// Snapshot copies the job under a read lock.
func (j *Job) Snapshot() Snapshot {
	j.mu.RLock()
	defer j.mu.RUnlock()
	snap := Snapshot{
		ID:         j.id,
		BatchID:    j.batchID,
		Epoch:      j.epoch,
		Descriptor: j.descriptor,
		OutputPath: j.outputPath,
		State:      j.state,
		QueuedAt:   j.queuedAt,
		StartedAt:  j.startedAt,
		FinishedAt: j.finishedAt,
		Elapsed:    j.elapsedLocked(time.Now()),
		Failure:    j.failure,
	}
	if j.progress != nil {
		p := *j.progress
		snap.Progress = &p
	}
	return snap
}

// Elapsed returns the running time so far, or the total running time once
// the job is terminal. Jobs that never ran report zero.
func (j *Job) Elapsed() time.Duration {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.elapsedLocked(time.Now())
}

func (j *Job) elapsedLocked(now time.Time) time.Duration {
	if j.startedAt.IsZero() {
		return 0
	}
	if !j.finishedAt.IsZero() {
		return j.finishedAt.Sub(j.startedAt)
	}
	return now.Sub(j.startedAt)
}

// ClampPercent bounds a reported percentage to [0,100]. NaN becomes 0.
func ClampPercent(p float64) float64 {
	switch {
	case math.IsNaN(p), p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}
