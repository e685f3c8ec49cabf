package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"convoy/internal/batch"
	"convoy/internal/job"
)

// Summary counts a batch's jobs by state.
type Summary struct {
	Total     int
	Pending   int
	Running   int
	Completed int
	Cancelled int
	Failed    int
	Rejected  int
}

// String renders the counts for logs and notifications.
func (s Summary) String() string {
	return fmt.Sprintf("%d completed, %d failed, %d cancelled, %d rejected", s.Completed, s.Failed, s.Cancelled, s.Rejected)
}

// Counts returns the summary keyed by state name, plus "rejected".
func (s Summary) Counts() map[string]int {
	return map[string]int{
		string(job.StatePending):   s.Pending,
		string(job.StateRunning):   s.Running,
		string(job.StateCompleted): s.Completed,
		string(job.StateCancelled): s.Cancelled,
		string(job.StateFailed):    s.Failed,
		"rejected":                 s.Rejected,
	}
}

// BatchHandle tracks one submission. Done closes once every accepted job is
// terminal, whatever the outcome.
type BatchHandle struct {
	id       string
	epoch    uint64
	jobs     []*job.Job
	rejected []Rejection

	mu        sync.Mutex
	remaining int
	done      chan struct{}
}

func newHandle(token *batch.Token, jobs []*job.Job, rejected []Rejection) *BatchHandle {
	return &BatchHandle{
		id:        token.ID(),
		epoch:     token.Epoch(),
		jobs:      jobs,
		rejected:  rejected,
		remaining: len(jobs),
		done:      make(chan struct{}),
	}
}

// newSettledHandle is returned when nothing was accepted; it has no batch ID
// and epoch zero because no token was issued.
func newSettledHandle(rejected []Rejection) *BatchHandle {
	h := &BatchHandle{rejected: rejected, done: make(chan struct{})}
	close(h.done)
	return h
}

// ID returns the batch identifier, empty when nothing was accepted.
func (h *BatchHandle) ID() string { return h.id }

// Epoch returns the batch epoch, zero when nothing was accepted.
func (h *BatchHandle) Epoch() uint64 { return h.epoch }

// Done is closed when the batch has settled.
func (h *BatchHandle) Done() <-chan struct{} { return h.done }

// Wait blocks until the batch settles or ctx ends.
func (h *BatchHandle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Settled reports whether Done is closed.
func (h *BatchHandle) Settled() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Jobs returns snapshots of the accepted jobs in submission order.
func (h *BatchHandle) Jobs() []job.Snapshot {
	snaps := make([]job.Snapshot, 0, len(h.jobs))
	for _, j := range h.jobs {
		snaps = append(snaps, j.Snapshot())
	}
	return snaps
}

// Rejected returns the descriptors dropped at submission.
func (h *BatchHandle) Rejected() []Rejection {
	out := make([]Rejection, len(h.rejected))
	copy(out, h.rejected)
	return out
}

// Summary counts jobs by state.
func (h *BatchHandle) Summary() Summary {
	s := Summary{Total: len(h.jobs) + len(h.rejected), Rejected: len(h.rejected)}
	for _, j := range h.jobs {
		switch j.State() {
		case job.StatePending:
			s.Pending++
		case job.StateRunning:
			s.Running++
		case job.StateCompleted:
			s.Completed++
		case job.StateCancelled:
			s.Cancelled++
		case job.StateFailed:
			s.Failed++
		}
	}
	return s
}

// jobDone records one terminal job and reports whether it was the last.
func (h *BatchHandle) jobDone() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.remaining--
	return h.remaining == 0
}

func (h *BatchHandle) markSettled() {
	close(h.done)
}
