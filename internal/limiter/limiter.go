// Package limiter caps how many jobs run at the same time.
package limiter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// ErrCancelled is returned by Acquire when the caller's context ends before a
// permit is granted.
var ErrCancelled = errors.New("permit acquisition cancelled")

// Limiter is a fixed-size permit pool.
type Limiter struct {
	capacity int64
	sem      *semaphore.Weighted
	inUse    atomic.Int64
}

// New returns a limiter with capacity permits. Capacity cannot change later.
func New(capacity int) (*Limiter, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("limiter capacity must be positive, got %d", capacity)
	}
	return &Limiter{
		capacity: int64(capacity),
		sem:      semaphore.NewWeighted(int64(capacity)),
	}, nil
}

// Acquire blocks until a permit is available or ctx is done. A permit that
// becomes available after ctx was already cancelled is handed back so a
// cancelled batch never starts new work.
func (l *Limiter) Acquire(ctx context.Context) (*Permit, error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCancelled, context.Cause(ctx))
	}
	if ctx.Err() != nil {
		l.sem.Release(1)
		return nil, fmt.Errorf("%w: %w", ErrCancelled, context.Cause(ctx))
	}
	l.inUse.Add(1)
	return &Permit{limiter: l}, nil
}

// Capacity reports the permit count fixed at construction.
func (l *Limiter) Capacity() int {
	return int(l.capacity)
}

// InUse reports how many permits are currently held.
func (l *Limiter) InUse() int {
	return int(l.inUse.Load())
}

// Permit authorizes one job to run. Release is idempotent, so callers defer it
// right after a successful Acquire.
type Permit struct {
	limiter *Limiter
	once    sync.Once
}

// Release returns the permit to the pool. Only the first call has an effect.
func (p *Permit) Release() {
	if p == nil {
		return
	}
	p.once.Do(func() {
		p.limiter.inUse.Add(-1)
		p.limiter.sem.Release(1)
	})
}
