package drapto

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	draptolib "github.com/five82/drapto"

	"convoy/internal/engine"
	"convoy/internal/logging"
	"convoy/internal/services"
)

func useEncoder(t *testing.T, fn func(ctx context.Context, inputPath, outputDir string, rep draptolib.Reporter) error) {
	t.Helper()
	original := encodeFile
	encodeFile = fn
	t.Cleanup(func() {
		encodeFile = original
	})
}

func writeSource(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "episode.mkv")
	if err := os.WriteFile(path, []byte("source"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	return path
}

func TestLibraryRejectsAudioOnly(t *testing.T) {
	lib := NewLibrary(t.TempDir(), nil)
	err := lib.Invoke(context.Background(), engine.Request{Source: "a", OutputPath: "b.mp3", AudioOnly: true}, nil)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestLibraryMissingSource(t *testing.T) {
	lib := NewLibrary(t.TempDir(), nil)
	err := lib.Invoke(context.Background(), engine.Request{Source: "/nope/missing.mkv", OutputPath: "out.mp4"}, nil)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestLibraryEncodesAndMovesOutput(t *testing.T) {
	source := writeSource(t)
	staging := t.TempDir()
	output := filepath.Join(t.TempDir(), "Show - S01E02.mp4")

	useEncoder(t, func(_ context.Context, inputPath, outputDir string, rep draptolib.Reporter) error {
		if inputPath != source {
			t.Errorf("unexpected input %q", inputPath)
		}
		rep.EncodingProgress(draptolib.ProgressSnapshot{Percent: 40, ETA: time.Minute})
		rep.EncodingComplete(draptolib.EncodingOutcome{})
		return os.WriteFile(filepath.Join(outputDir, "episode.mkv"), []byte("av1"), 0o644)
	})

	var reports []engine.Progress
	lib := NewLibrary(staging, logging.NewNop())
	if err := lib.Invoke(context.Background(), engine.Request{Source: source, OutputPath: output}, func(p engine.Progress) {
		reports = append(reports, p)
	}); err != nil {
		t.Fatalf("Invoke: %v", err)
	}

	data, err := os.ReadFile(output)
	if err != nil || string(data) != "av1" {
		t.Fatalf("expected moved output, got %q %v", data, err)
	}
	if len(reports) != 2 || reports[0].Percent != 40 || reports[1].Percent != 100 {
		t.Fatalf("unexpected reports %+v", reports)
	}
	if reports[0].Total < time.Minute {
		t.Fatalf("expected total to include ETA, got %s", reports[0].Total)
	}
	entries, err := os.ReadDir(staging)
	if err != nil {
		t.Fatalf("read staging: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected staging cleaned up, found %d entries", len(entries))
	}
}

func TestLibraryFailureIncludesReporterError(t *testing.T) {
	source := writeSource(t)
	useEncoder(t, func(_ context.Context, _, _ string, rep draptolib.Reporter) error {
		rep.Error(draptolib.ReporterError{Title: "Encode failed", Message: "svt-av1 exited"})
		return errors.New("exit status 1")
	})

	err := NewLibrary(t.TempDir(), nil).Invoke(context.Background(), engine.Request{Source: source, OutputPath: filepath.Join(t.TempDir(), "x.mp4")}, nil)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	if engine.IsCancellation(err) {
		t.Fatal("failure must not be reported as cancellation")
	}
	if got := err.Error(); !containsAll(got, "Encode failed", "svt-av1 exited", "exit status 1") {
		t.Fatalf("unexpected error text %q", got)
	}
}

func TestLibraryCancellation(t *testing.T) {
	source := writeSource(t)
	ctx, cancel := context.WithCancel(context.Background())
	useEncoder(t, func(ctx context.Context, _, _ string, _ draptolib.Reporter) error {
		cancel()
		<-ctx.Done()
		return ctx.Err()
	})

	err := NewLibrary(t.TempDir(), nil).Invoke(ctx, engine.Request{Source: source, OutputPath: filepath.Join(t.TempDir(), "x.mp4")}, nil)
	if !engine.IsCancellation(err) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}

func TestOutputName(t *testing.T) {
	if got := outputName("/media/movie.file.mkv"); got != "movie.file.mkv" {
		t.Fatalf("unexpected output name %q", got)
	}
	if got := outputName("/media/.hidden"); got != ".hidden.mkv" {
		t.Fatalf("unexpected output name for dotfile %q", got)
	}
}

func containsAll(s string, parts ...string) bool {
	for _, part := range parts {
		if !strings.Contains(s, part) {
			return false
		}
	}
	return true
}
