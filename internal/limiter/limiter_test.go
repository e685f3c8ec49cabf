package limiter_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"convoy/internal/limiter"
)

func TestNewRejectsNonPositiveCapacity(t *testing.T) {
	for _, capacity := range []int{0, -2} {
		if _, err := limiter.New(capacity); err == nil {
			t.Fatalf("expected error for capacity %d", capacity)
		}
	}
}

func TestAcquireBoundsConcurrency(t *testing.T) {
	lim, err := limiter.New(3)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	var active, peak atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			permit, err := lim.Acquire(context.Background())
			if err != nil {
				t.Errorf("Acquire: %v", err)
				return
			}
			defer permit.Release()
			n := active.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			active.Add(-1)
		}()
	}
	wg.Wait()
	if got := peak.Load(); got > 3 {
		t.Fatalf("observed %d concurrent holders, capacity is 3", got)
	}
	if lim.InUse() != 0 {
		t.Fatalf("expected all permits returned, %d in use", lim.InUse())
	}
}

func TestAcquireCancelledWhileWaiting(t *testing.T) {
	lim, _ := limiter.New(1)
	held, err := lim.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer held.Release()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := lim.Acquire(ctx)
		done <- err
	}()
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, limiter.ErrCancelled) {
			t.Fatalf("expected ErrCancelled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Acquire did not observe cancellation")
	}
	if lim.InUse() != 1 {
		t.Fatalf("cancelled acquisition must not hold a permit, in use %d", lim.InUse())
	}
}

func TestAcquireWithCancelledContextGrantsNothing(t *testing.T) {
	lim, _ := limiter.New(2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := lim.Acquire(ctx); !errors.Is(err, limiter.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	if lim.InUse() != 0 {
		t.Fatalf("expected no permits in use, got %d", lim.InUse())
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	lim, _ := limiter.New(1)
	permit, err := lim.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	permit.Release()
	permit.Release()
	if lim.InUse() != 0 {
		t.Fatalf("expected 0 in use, got %d", lim.InUse())
	}
	second, err := lim.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
	second.Release()
	if lim.Capacity() != 1 {
		t.Fatalf("capacity changed: %d", lim.Capacity())
	}
}
