// Package events carries job lifecycle notifications from runners to
// observers.
//
// Delivery is synchronous on the goroutine that emits the event, which keeps
// the per-job order Started, Progress..., terminal intact. Each emission works
// on a snapshot of the subscriber list, so observers may subscribe or
// unsubscribe at any time, including from inside a callback; the change
// applies from the next emission. A panicking observer is recovered and
// reported through the bus logger and never reaches the emitting job.
package events

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"convoy/internal/job"
	"convoy/internal/logging"
)

// Type names a notification channel.
type Type string

const (
	TypeStarted   Type = "started"
	TypeProgress  Type = "progress"
	TypeCompleted Type = "completed"
	TypeCancelled Type = "cancelled"
	TypeFailed    Type = "failed"
	// TypeRejected reports a descriptor dropped at submission (invalid or duplicate).
	TypeRejected Type = "rejected"
	// TypeBatchSettled reports that every accepted job of a batch is terminal.
	TypeBatchSettled Type = "batch_settled"
)

// IsTerminal reports whether the event ends a job's event sequence.
func (t Type) IsTerminal() bool {
	switch t {
	case TypeCompleted, TypeCancelled, TypeFailed:
		return true
	}
	return false
}

// Event is one notification. Fields unused by a type are zero.
type Event struct {
	Type       Type
	Job        job.Snapshot
	BatchID    string
	Percent    float64
	Elapsed    time.Duration
	Total      time.Duration
	OutputPath string
	Message    string
	Err        error
	// Counts holds per-state job totals on BatchSettled.
	Counts map[string]int
	At     time.Time
}

// Observer receives events.
type Observer interface {
	OnEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// OnEvent calls f.
func (f ObserverFunc) OnEvent(evt Event) { f(evt) }

type subscription struct {
	id       uint64
	observer Observer
	types    map[Type]struct{}
}

func (s *subscription) wants(t Type) bool {
	if len(s.types) == 0 {
		return true
	}
	_, ok := s.types[t]
	return ok
}

// Bus fans events out to subscribers.
type Bus struct {
	logger *slog.Logger

	mu     sync.Mutex
	nextID uint64
	subs   []*subscription

	faults atomic.Int64
}

// NewBus creates an empty bus. A nil logger discards observer faults.
func NewBus(logger *slog.Logger) *Bus {
	return &Bus{logger: logging.NewComponentLogger(logger, "events")}
}

// Subscribe registers observer for the given types, or for every type when
// none are listed. The returned function unsubscribes; calling it more than
// once is harmless.
func (b *Bus) Subscribe(observer Observer, types ...Type) (unsubscribe func()) {
	if observer == nil {
		return func() {}
	}
	sub := &subscription{observer: observer}
	if len(types) > 0 {
		sub.types = make(map[Type]struct{}, len(types))
		for _, t := range types {
			sub.types[t] = struct{}{}
		}
	}

	b.mu.Lock()
	b.nextID++
	sub.id = b.nextID
	next := make([]*subscription, 0, len(b.subs)+1)
	next = append(next, b.subs...)
	b.subs = append(next, sub)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(sub.id) })
	}
}

// SubscribeFunc is Subscribe for plain functions.
func (b *Bus) SubscribeFunc(fn func(Event), types ...Type) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}
	return b.Subscribe(ObserverFunc(fn), types...)
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	next := make([]*subscription, 0, len(b.subs))
	for _, sub := range b.subs {
		if sub.id != id {
			next = append(next, sub)
		}
	}
	b.subs = next
}

// Subscribers reports the current subscriber count.
func (b *Bus) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Faults reports how many observer callbacks panicked.
func (b *Bus) Faults() int64 {
	return b.faults.Load()
}

// Publish delivers evt to every interested subscriber.
func (b *Bus) Publish(evt Event) {
	if b == nil {
		return
	}
	if evt.At.IsZero() {
		evt.At = time.Now()
	}
	b.mu.Lock()
	subs := b.subs
	b.mu.Unlock()

	for _, sub := range subs {
		if !sub.wants(evt.Type) {
			continue
		}
		b.deliver(sub, evt)
	}
}

func (b *Bus) deliver(sub *subscription, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			b.faults.Add(1)
			b.logger.Error("event observer panicked",
				logging.String(logging.FieldEventType, "observer_fault"),
				logging.String("event", string(evt.Type)),
				logging.String(logging.FieldJobID, evt.Job.ID),
				logging.String("panic", fmt.Sprint(r)),
				logging.String(logging.FieldErrorHint, "fix the subscriber; the job is unaffected"),
			)
		}
	}()
	sub.observer.OnEvent(evt)
}
