package drapto

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	draptolib "github.com/five82/drapto"
	"github.com/google/uuid"

	"convoy/internal/engine"
	"convoy/internal/fileutil"
	"convoy/internal/logging"
	"convoy/internal/services"
)

// encodeFile runs one Drapto encode into outputDir. Tests replace it to avoid
// running the real encoder.
var encodeFile = func(ctx context.Context, inputPath, outputDir string, rep draptolib.Reporter) error {
	encoder, err := draptolib.New(draptolib.WithResponsive())
	if err != nil {
		return err
	}
	_, err = encoder.EncodeWithReporter(ctx, inputPath, outputDir, rep)
	return err
}

// Library implements engine.Engine using the Drapto Go library directly.
// Drapto writes <stem>.mkv into a per-job staging directory; the result is
// moved to the job's output path once the encode succeeds.
type Library struct {
	stagingDir string
	logger     *slog.Logger
}

// NewLibrary constructs a Library engine that stages encodes under stagingDir.
func NewLibrary(stagingDir string, logger *slog.Logger) *Library {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Library{
		stagingDir: strings.TrimSpace(stagingDir),
		logger:     logging.NewComponentLogger(logger, "drapto"),
	}
}

// Invoke encodes req.Source and reports Drapto progress.
func (l *Library) Invoke(ctx context.Context, req engine.Request, progress engine.ProgressFunc) error {
	if req.AudioOnly {
		return services.Wrap(services.ErrValidation, "drapto", "encode", "audio-only jobs are not supported by the drapto backend", nil)
	}
	if strings.TrimSpace(req.Source) == "" {
		return services.Wrap(services.ErrValidation, "drapto", "encode", "input path required", nil)
	}
	if strings.TrimSpace(req.OutputPath) == "" {
		return services.Wrap(services.ErrValidation, "drapto", "encode", "output path required", nil)
	}
	if l.stagingDir == "" {
		return services.Wrap(services.ErrConfiguration, "drapto", "encode", "staging directory not configured", nil)
	}
	info, err := os.Stat(req.Source)
	if err != nil {
		return services.Wrap(services.ErrNotFound, "drapto", "stat source", req.Source, err)
	}
	if info.IsDir() {
		return services.Wrap(services.ErrValidation, "drapto", "stat source", req.Source+" is a directory", nil)
	}
	if err := ctx.Err(); err != nil {
		return engine.Cancelled(ctx)
	}

	workDir := filepath.Join(l.stagingDir, uuid.NewString())
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, "drapto", "create staging", workDir, err)
	}
	defer func() {
		if err := os.RemoveAll(workDir); err != nil {
			l.logger.Warn("failed to remove drapto staging directory",
				logging.String("path", workDir),
				logging.Error(err),
				logging.String(logging.FieldEventType, "staging_cleanup_failed"),
				logging.String(logging.FieldErrorHint, "remove the directory manually"),
			)
		}
	}()

	rep := newReporter(progress, l.logger)
	if err := encodeFile(ctx, req.Source, workDir, rep); err != nil {
		if ctx.Err() != nil {
			return engine.Cancelled(ctx)
		}
		return services.Wrap(services.ErrExternalTool, "drapto", "encode", rep.lastError(), err)
	}

	produced := filepath.Join(workDir, outputName(req.Source))
	if err := fileutil.Move(produced, req.OutputPath); err != nil {
		return services.Wrap(services.ErrExternalTool, "drapto", "move output", req.OutputPath, err)
	}
	return nil
}

func outputName(inputPath string) string {
	base := filepath.Base(inputPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" {
		stem = base
	}
	return stem + ".mkv"
}

var _ engine.Engine = (*Library)(nil)
