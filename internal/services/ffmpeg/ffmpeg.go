package ffmpeg

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"convoy/internal/engine"
	"convoy/internal/logging"
	"convoy/internal/services"
)

var commandContext = exec.CommandContext

const (
	encoderHardware = "h264_nvenc"
	encoderSoftware = "libx264"

	defaultTailLines = 20
	interruptGrace   = 10 * time.Second
)

// Option configures the ffmpeg engine.
type Option func(*Engine)

// WithBinary overrides the default binary name.
func WithBinary(binary string) Option {
	return func(e *Engine) {
		if binary = strings.TrimSpace(binary); binary != "" {
			e.binary = binary
		}
	}
}

// WithHardwareAcceleration selects h264_nvenc over libx264 for video jobs.
func WithHardwareAcceleration(enabled bool) Option {
	return func(e *Engine) {
		e.hardware = enabled
	}
}

// WithStderrTail sets how many trailing stderr lines failure errors carry.
func WithStderrTail(lines int) Option {
	return func(e *Engine) {
		if lines > 0 {
			e.tailLines = lines
		}
	}
}

// WithLogger attaches a logger for debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// Engine runs conversions through the ffmpeg command-line tool.
type Engine struct {
	binary    string
	hardware  bool
	tailLines int
	logger    *slog.Logger
}

// New constructs an ffmpeg engine using defaults.
func New(opts ...Option) *Engine {
	e := &Engine{binary: "ffmpeg", tailLines: defaultTailLines, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = logging.NewComponentLogger(e.logger, "ffmpeg")
	return e
}

// Args returns the ffmpeg argument list for req.
func (e *Engine) Args(req engine.Request) []string {
	args := []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", req.Source,
	}
	if req.AudioOnly {
		args = append(args, "-vn")
	} else {
		codec := encoderSoftware
		if e.hardware {
			codec = encoderHardware
		}
		args = append(args, "-c:v", codec)
	}
	args = append(args,
		"-progress", "pipe:1",
		"-nostats",
		req.OutputPath,
	)
	return args
}

// Invoke runs ffmpeg for req and reports progress parsed from -progress output.
func (e *Engine) Invoke(ctx context.Context, req engine.Request, progress engine.ProgressFunc) error {
	if strings.TrimSpace(req.Source) == "" {
		return services.Wrap(services.ErrValidation, "ffmpeg", "transcode", "source required", nil)
	}
	if strings.TrimSpace(req.OutputPath) == "" {
		return services.Wrap(services.ErrValidation, "ffmpeg", "transcode", "output path required", nil)
	}
	if err := ctx.Err(); err != nil {
		return engine.Cancelled(ctx)
	}
	if err := os.MkdirAll(filepath.Dir(req.OutputPath), 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, "ffmpeg", "prepare output", req.OutputPath, err)
	}

	args := e.Args(req)
	e.logger.Debug("ffmpeg command", logging.String("binary", e.binary), logging.String("args", strings.Join(args, " ")))

	cmd := commandContext(ctx, e.binary, args...) //nolint:gosec
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = interruptGrace

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return services.Wrap(services.ErrConfiguration, "ffmpeg", "start", fmt.Sprintf("binary %q not found", e.binary), err)
		}
		return services.Wrap(services.ErrExternalTool, "ffmpeg", "start", "", err)
	}

	var total atomic.Int64
	tail := newTailBuffer(e.tailLines)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		scanStderr(stderr, tail, &total)
	}()

	parser := progressParser{}
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		position, ok := parser.feed(scanner.Text())
		if !ok || progress == nil {
			continue
		}
		progress(buildProgress(position, time.Duration(total.Load())))
	}
	// Drain so ffmpeg never blocks on a full pipe after a scanner error.
	_, _ = io.Copy(io.Discard, stdout)
	wg.Wait()

	waitErr := cmd.Wait()
	if waitErr != nil && ctx.Err() != nil {
		removePartial(req.OutputPath)
		return engine.Cancelled(ctx)
	}
	if waitErr != nil {
		removePartial(req.OutputPath)
		return services.Wrap(services.ErrExternalTool, "ffmpeg", "transcode", tail.String(), waitErr)
	}
	if err := scanner.Err(); err != nil {
		return services.Wrap(services.ErrExternalTool, "ffmpeg", "read progress", "", err)
	}
	return nil
}

func buildProgress(position, total time.Duration) engine.Progress {
	p := engine.Progress{Elapsed: position, Total: total}
	if total > 0 {
		p.Percent = float64(position) / float64(total) * 100
	}
	return p
}

func scanStderr(r io.Reader, tail *tailBuffer, total *atomic.Int64) {
	scanner := bufio.NewScanner(r)
	scanner.Split(scanLinesOrCR)
	for scanner.Scan() {
		line := scanner.Text()
		if total.Load() == 0 {
			if d, ok := parseDurationBanner(line); ok {
				total.Store(int64(d))
			}
		}
		tail.add(line)
	}
	_, _ = io.Copy(io.Discard, r)
}

func removePartial(path string) {
	_ = os.Remove(path)
}

var _ engine.Engine = (*Engine)(nil)
