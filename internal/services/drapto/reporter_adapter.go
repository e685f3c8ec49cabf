package drapto

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	draptolib "github.com/five82/drapto"

	"convoy/internal/engine"
	"convoy/internal/logging"
)

// reporter adapts the Drapto Reporter interface to convoy's engine progress
// callback. Drapto reports wall-clock ETAs rather than media positions, so
// Elapsed is time since the encode started and Total is Elapsed plus ETA.
type reporter struct {
	callback engine.ProgressFunc
	logger   *slog.Logger
	started  time.Time
	now      func() time.Time

	mu      sync.Mutex
	lastErr string
}

func newReporter(callback engine.ProgressFunc, logger *slog.Logger) *reporter {
	return &reporter{callback: callback, logger: logger, started: time.Now(), now: time.Now}
}

func (r *reporter) emit(percent float64, eta time.Duration) {
	if r.callback == nil {
		return
	}
	elapsed := r.now().Sub(r.started)
	total := time.Duration(0)
	if eta > 0 {
		total = elapsed + eta
	}
	r.callback(engine.Progress{Percent: percent, Elapsed: elapsed, Total: total})
}

func (r *reporter) lastError() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

func (r *reporter) Hardware(draptolib.HardwareSummary) {}

func (r *reporter) Initialization(s draptolib.InitializationSummary) {
	r.logger.Debug("drapto initialized",
		logging.Any("input", s.InputFile),
		logging.Any("resolution", s.Resolution),
	)
}

func (r *reporter) StageProgress(s draptolib.StageProgress) {
	var eta time.Duration
	if s.ETA != nil {
		eta = *s.ETA
	}
	r.logger.Debug("drapto stage", logging.Any("stage", s.Stage), logging.Any("message", s.Message))
	r.emit(float64(s.Percent), eta)
}

func (r *reporter) CropResult(draptolib.CropSummary) {}

func (r *reporter) EncodingConfig(draptolib.EncodingConfigSummary) {}

func (r *reporter) EncodingStarted(totalFrames uint64) {
	r.logger.Debug("drapto encoding started", logging.Uint64("total_frames", totalFrames))
}

func (r *reporter) EncodingProgress(s draptolib.ProgressSnapshot) {
	r.emit(float64(s.Percent), s.ETA)
}

func (r *reporter) ValidationComplete(draptolib.ValidationSummary) {}

func (r *reporter) EncodingComplete(draptolib.EncodingOutcome) {
	r.emit(100, 0)
}

func (r *reporter) Warning(message string) {
	r.logger.Warn("drapto warning",
		logging.String("message", message),
		logging.String(logging.FieldEventType, "drapto_warning"),
		logging.String(logging.FieldErrorHint, "review the encode once it finishes"),
	)
}

func (r *reporter) Error(e draptolib.ReporterError) {
	parts := make([]string, 0, 2)
	for _, part := range []string{e.Title, e.Message} {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	r.mu.Lock()
	r.lastErr = strings.Join(parts, ": ")
	r.mu.Unlock()
}

func (r *reporter) OperationComplete(string) {}

func (r *reporter) BatchStarted(draptolib.BatchStartInfo) {}

func (r *reporter) FileProgress(draptolib.FileProgressContext) {}

func (r *reporter) BatchComplete(draptolib.BatchSummary) {}

var _ draptolib.Reporter = (*reporter)(nil)
