package main

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"convoy/internal/events"
	"convoy/internal/logging"
	"convoy/internal/orchestrator"
)

// batchView renders job events while a batch runs.
type batchView interface {
	events.Observer
	// Run blocks until the batch settles or the view is closed by the user.
	Run(ctx context.Context, handle *orchestrator.BatchHandle) error
}

const plainProgressBucket = 10

// plainView prints one line per lifecycle event and a progress line every
// plainProgressBucket percent.
type plainView struct {
	out      io.Writer
	colorize bool

	mu       sync.Mutex
	samplers map[string]*logging.ProgressSampler
}

func newPlainView(out io.Writer, colorize bool) *plainView {
	return &plainView{out: out, colorize: colorize, samplers: make(map[string]*logging.ProgressSampler)}
}

func (v *plainView) Run(ctx context.Context, handle *orchestrator.BatchHandle) error {
	return handle.Wait(ctx)
}

func (v *plainView) OnEvent(evt events.Event) {
	v.mu.Lock()
	defer v.mu.Unlock()

	label := evt.Job.Descriptor.FileName()
	switch evt.Type {
	case events.TypeStarted:
		v.samplers[evt.Job.ID] = logging.NewProgressSampler(plainProgressBucket, 0)
		v.println(label, statusInfo, "started")
	case events.TypeProgress:
		sampler := v.samplers[evt.Job.ID]
		if sampler == nil || !sampler.ShouldLog(evt.Percent) {
			return
		}
		v.println(label, statusInfo, formatProgress(evt.Elapsed, evt.Total, evt.Percent))
	case events.TypeCompleted:
		delete(v.samplers, evt.Job.ID)
		v.println(label, statusOK, fmt.Sprintf("completed in %s", formatDuration(evt.Elapsed)))
	case events.TypeCancelled:
		delete(v.samplers, evt.Job.ID)
		v.println(label, statusWarn, "cancelled")
	case events.TypeFailed:
		delete(v.samplers, evt.Job.ID)
		v.println(label, statusError, evt.Message)
	case events.TypeRejected:
		v.println(label, statusWarn, "rejected: "+evt.Message)
	}
}

func (v *plainView) println(label string, kind statusKind, message string) {
	fmt.Fprintln(v.out, renderStatusLine(label, kind, message, v.colorize))
}

// formatProgress renders "elapsed/total (pct%)"; the total is omitted while
// unknown.
func formatProgress(elapsed, total time.Duration, percent float64) string {
	if total <= 0 {
		return fmt.Sprintf("%s (%.1f%%)", formatClock(elapsed), percent)
	}
	return fmt.Sprintf("%s/%s (%.1f%%)", formatClock(elapsed), formatClock(total), percent)
}

func formatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, (secs%3600)/60, secs%60)
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(time.Second).String()
}
