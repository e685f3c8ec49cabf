package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"convoy/internal/config"
	"convoy/internal/events"
	"convoy/internal/logging"
	"convoy/internal/manifest"
	"convoy/internal/notifications"
	"convoy/internal/orchestrator"
	"convoy/internal/preflight"
	"convoy/internal/services/backend"
	"convoy/internal/staging"
)

// newEngine is replaced in tests.
var newEngine = backend.New

// errJobsFailed is returned when the batch settled with failed jobs.
var errJobsFailed = errors.New("one or more jobs failed")

type runOptions struct {
	outputDir string
	maxJobs   int
	tui       bool
	verbose   bool
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run <manifest.toml>",
		Short: "Convert every job in a manifest",
		Long: "Load a TOML manifest of [[job]] entries and convert them with bounded concurrency.\n" +
			"Press Ctrl+C once to cancel the batch; running conversions are stopped and\n" +
			"queued ones never start.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runManifest(cmd, ctx, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.outputDir, "output", "o", "", "Output directory (overrides manifest and config)")
	cmd.Flags().IntVarP(&opts.maxJobs, "jobs", "j", 0, "Maximum concurrent jobs (overrides concurrency.max_jobs)")
	cmd.Flags().BoolVar(&opts.tui, "tui", false, "Show a live progress view when attached to a terminal")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Also write logs to stderr")
	return cmd
}

func runManifest(cmd *cobra.Command, ctx *commandContext, manifestPath string, opts runOptions) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	m, err := manifest.Load(manifestPath)
	if err != nil {
		return err
	}
	for _, issue := range m.Issues {
		fmt.Fprintln(out, renderStatusLine(fmt.Sprintf("job %d", issue.Index+1), statusWarn, issue.Err.Error(), colorize))
	}
	if len(m.Descriptors) == 0 {
		return errors.New("manifest has no valid jobs")
	}

	outputDir, err := resolveOutputDir(opts.outputDir, m.OutputDir, cfg)
	if err != nil {
		return err
	}
	if err := preflight.EnsureWritableDir(outputDir); err != nil {
		return fmt.Errorf("%w: %w", orchestrator.ErrInvalidOutputTarget, err)
	}
	lock, err := preflight.LockOutputDir(outputDir)
	if err != nil {
		return err
	}
	defer lock.Release()

	useTUI := opts.tui && stdoutIsTTY(out)
	logger, err := ctx.logger(opts.verbose && !useTUI)
	if err != nil {
		return err
	}
	logger = logging.NewComponentLogger(logger, "cli")

	runCtx := cmd.Context()
	if runCtx == nil {
		runCtx = context.Background()
	}

	if cfg.Engine.Backend == config.BackendDrapto {
		staging.Sweep(runCtx, cfg.Engine.StagingDir, staging.DefaultMaxAge, logger)
	}
	eng, err := newEngine(cfg, logger)
	if err != nil {
		return err
	}

	bus := events.NewBus(logger)
	notifier := notifications.NewObserver(notifications.NewService(cfg), logger)
	bus.Subscribe(notifier, notifier.Types()...)
	defer closeNotifier(notifier, logger)

	maxJobs := cfg.Concurrency.MaxJobs
	if opts.maxJobs > 0 {
		maxJobs = opts.maxJobs
	}
	orch, err := orchestrator.New(orchestrator.Options{
		MaxConcurrentJobs: maxJobs,
		Engine:            eng,
		Logger:            logger,
		Bus:               bus,
		ProgressBucket:    cfg.Logging.ProgressBucket,
		ProgressInterval:  cfg.ProgressInterval(),
	})
	if err != nil {
		return err
	}
	defer disposeOrchestrator(orch, logger)

	stopSignals := cancelOnSignal(runCtx, orch, out, useTUI)
	defer stopSignals()

	var view batchView
	if useTUI {
		view = newTUIView(orch, len(m.Descriptors))
	} else {
		view = newPlainView(out, colorize)
	}
	unsubscribe := bus.Subscribe(view)
	defer unsubscribe()

	logger.Info("starting batch",
		logging.String(logging.FieldEventType, "run_started"),
		logging.String("manifest", m.Path),
		logging.String("output_dir", outputDir),
		logging.Int("jobs", len(m.Descriptors)),
		logging.Int("manifest_issues", len(m.Issues)),
		logging.String("backend", cfg.Engine.Backend),
	)

	handle, err := orch.Submit(runCtx, m.Descriptors, outputDir)
	if err != nil {
		return err
	}
	if err := view.Run(runCtx, handle); err != nil {
		orch.CancelAll()
		_ = handle.Wait(context.Background())
		return err
	}
	if err := handle.Wait(runCtx); err != nil {
		return err
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, renderSummary(handle))
	if handle.Summary().Failed > 0 {
		return errJobsFailed
	}
	return nil
}

func resolveOutputDir(flagValue, manifestValue string, cfg *config.Config) (string, error) {
	for _, candidate := range []string{flagValue, manifestValue, cfg.Paths.OutputDir} {
		if candidate = strings.TrimSpace(candidate); candidate != "" {
			return config.ExpandPath(candidate)
		}
	}
	return "", errors.New("no output directory: pass --output, set output_dir in the manifest, or set paths.output_dir")
}

// cancelOnSignal cancels the batch on the first SIGINT or SIGTERM. The batch
// then settles on its own; a second signal falls through to the default
// handler.
func cancelOnSignal(ctx context.Context, orch *orchestrator.Orchestrator, out io.Writer, quiet bool) func() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		select {
		case <-sigs:
			signal.Stop(sigs)
			if !quiet {
				fmt.Fprintln(out, "Cancelling batch; waiting for running jobs to stop...")
			}
			orch.CancelAll()
		case <-ctx.Done():
		case <-done:
		}
	}()
	return func() {
		signal.Stop(sigs)
		close(done)
	}
}

func closeNotifier(notifier *notifications.Observer, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := notifier.Close(ctx); err != nil {
		logging.WarnWithContext(logger, "pending notifications abandoned", "notification_flush_timeout",
			logging.Error(err),
			logging.String(logging.FieldImpact, "some ntfy messages were not sent"),
		)
	}
}

func disposeOrchestrator(orch *orchestrator.Orchestrator, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := orch.Dispose(ctx); err != nil {
		logging.WarnWithContext(logger, "engine runs still active at exit", "dispose_timeout",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check for stray ffmpeg processes"),
		)
	}
}
