package notifications

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"convoy/internal/events"
	"convoy/internal/logging"
)

const queueSize = 32

type delivery struct {
	event   Event
	payload Payload
}

// Observer forwards job failures and batch settlements to a Service. Sends run
// on a single background goroutine so a slow ntfy server never stalls a job.
type Observer struct {
	svc    Service
	logger *slog.Logger
	done   chan struct{}

	// mu guards sends on queue against Close closing it.
	mu     sync.Mutex
	closed bool
	queue  chan delivery
}

// NewObserver starts the delivery goroutine. Call Close to drain and stop it.
func NewObserver(svc Service, logger *slog.Logger) *Observer {
	if svc == nil {
		svc = noopService{}
	}
	o := &Observer{
		svc:    svc,
		logger: logging.NewComponentLogger(logger, "notifications"),
		queue:  make(chan delivery, queueSize),
		done:   make(chan struct{}),
	}
	go o.loop()
	return o
}

// Types lists the event types the observer handles, for Bus.Subscribe.
func (o *Observer) Types() []events.Type {
	return []events.Type{events.TypeFailed, events.TypeBatchSettled}
}

// OnEvent implements events.Observer. It never blocks; notifications are
// dropped when the queue is full and ignored after Close.
func (o *Observer) OnEvent(evt events.Event) {
	d, ok := translate(evt)
	if !ok {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	select {
	case o.queue <- d:
	default:
		o.logger.Warn("notification dropped",
			logging.String(logging.FieldEventType, "notification_dropped"),
			logging.String("event", string(d.event)),
			logging.String(logging.FieldErrorHint, "ntfy is slow or unreachable"),
		)
	}
}

func translate(evt events.Event) (delivery, bool) {
	switch evt.Type {
	case events.TypeFailed:
		return delivery{event: EventJobFailed, payload: Payload{
			"title": evt.Job.Descriptor.Title(),
			"error": evt.Message,
		}}, true
	case events.TypeBatchSettled:
		payload := Payload{"batch_id": evt.BatchID, "summary": evt.Message}
		for k, v := range evt.Counts {
			payload[k] = v
		}
		return delivery{event: EventBatchSettled, payload: payload}, true
	default:
		return delivery{}, false
	}
}

func (o *Observer) loop() {
	defer close(o.done)
	for d := range o.queue {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := o.svc.Publish(ctx, d.event, d.payload); err != nil {
			logging.WarnWithContext(o.logger, "notification failed", "notification_failed",
				logging.String("event", string(d.event)),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
				logging.String(logging.FieldImpact, "jobs are unaffected"),
			)
		}
		cancel()
	}
}

// Close stops accepting events and waits for queued notifications to be sent
// or ctx to end.
func (o *Observer) Close(ctx context.Context) error {
	o.mu.Lock()
	if !o.closed {
		o.closed = true
		close(o.queue)
	}
	o.mu.Unlock()
	select {
	case <-o.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
