package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"convoy/internal/config"
	"convoy/internal/engine"
	"convoy/internal/preflight"
)

type cliTestEnv struct {
	baseDir    string
	configPath string
	outputDir  string
	logDir     string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	home := filepath.Join(base, "home")
	if err := os.MkdirAll(home, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", home)
	t.Setenv("CONVOY_NTFY_TOPIC", "")

	env := &cliTestEnv{
		baseDir:    base,
		configPath: filepath.Join(home, ".config", "convoy", "config.toml"),
		outputDir:  filepath.Join(base, "out"),
		logDir:     filepath.Join(base, "logs"),
	}
	if err := os.MkdirAll(filepath.Dir(env.configPath), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	content := fmt.Sprintf("[paths]\noutput_dir = %q\nlog_dir = %q\n\n[concurrency]\nmax_jobs = 2\n\n[engine]\nbackend = %q\n",
		env.outputDir, env.logDir, config.BackendFFmpeg)
	if err := os.WriteFile(env.configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return env
}

func (env *cliTestEnv) writeManifest(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(env.baseDir, "batch.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	return path
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func useEngine(t *testing.T, fn engine.Func) {
	t.Helper()
	prev := newEngine
	newEngine = func(*config.Config, *slog.Logger) (engine.Engine, error) { return fn, nil }
	t.Cleanup(func() { newEngine = prev })
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

const testManifest = `
[[job]]
source = "https://cdn.example.com/s01e01/master.m3u8"
title = "Show"
season = 1
episode = 1

[[job]]
source = "https://cdn.example.com/theme.m3u8"
title = "Theme"
extension = "mp3"

[[job]]
source = "https://cdn.example.com/bad.m3u8"
title = "Bad"
extension = "flac"
`

func writingEngine(ctx context.Context, req engine.Request, progress engine.ProgressFunc) error {
	progress(engine.Progress{Percent: 50, Elapsed: 30 * time.Second, Total: time.Minute})
	return os.WriteFile(req.OutputPath, []byte("media"), 0o644)
}

func TestRunConvertsManifest(t *testing.T) {
	env := setupCLITestEnv(t)
	useEngine(t, writingEngine)
	manifestPath := env.writeManifest(t, testManifest)

	out, _, err := runCLI(t, []string{"run", manifestPath}, env.configPath)
	if err != nil {
		t.Fatalf("run: %v\n%s", err, out)
	}
	requireContains(t, out, "job 3")
	requireContains(t, out, "unsupported")
	requireContains(t, out, "00:00:30/00:01:00 (50.0%)")
	requireContains(t, out, "2 ok / 0 failed")

	for _, name := range []string{"Show - S01E01.mp4", "Theme.mp3"} {
		if _, err := os.Stat(filepath.Join(env.outputDir, name)); err != nil {
			t.Fatalf("expected output %s: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(env.outputDir, ".convoy.lock")); !os.IsNotExist(err) {
		t.Fatalf("expected lock file removed, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(env.logDir, "convoy.log")); err != nil {
		t.Fatalf("expected log file: %v", err)
	}
}

func TestRunReportsFailedJobs(t *testing.T) {
	env := setupCLITestEnv(t)
	useEngine(t, func(ctx context.Context, req engine.Request, progress engine.ProgressFunc) error {
		if req.AudioOnly {
			return errors.New("ffmpeg exited with status 1: stream not found")
		}
		return writingEngine(ctx, req, progress)
	})
	manifestPath := env.writeManifest(t, testManifest)

	override := filepath.Join(env.baseDir, "override")
	out, _, err := runCLI(t, []string{"run", "--output", override, manifestPath}, env.configPath)
	if !errors.Is(err, errJobsFailed) {
		t.Fatalf("expected errJobsFailed, got %v\n%s", err, out)
	}
	requireContains(t, out, "stream not found")
	requireContains(t, out, "1 ok / 1 failed")
	if _, err := os.Stat(filepath.Join(override, "Show - S01E01.mp4")); err != nil {
		t.Fatalf("expected output in override dir: %v", err)
	}
}

func TestRunRefusesLockedOutputDir(t *testing.T) {
	env := setupCLITestEnv(t)
	useEngine(t, writingEngine)
	manifestPath := env.writeManifest(t, testManifest)

	if err := os.MkdirAll(env.outputDir, 0o755); err != nil {
		t.Fatalf("mkdir output: %v", err)
	}
	lock, err := preflight.LockOutputDir(env.outputDir)
	if err != nil {
		t.Fatalf("LockOutputDir: %v", err)
	}
	defer lock.Release()

	_, _, err = runCLI(t, []string{"run", manifestPath}, env.configPath)
	if !errors.Is(err, preflight.ErrOutputLocked) {
		t.Fatalf("expected ErrOutputLocked, got %v", err)
	}
}

func TestConfigInitValidateAndShow(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")

	out, _, err = runCLI(t, []string{"config", "show"}, env.configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "max_jobs = 2")
	requireContains(t, out, env.outputDir)

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected init to refuse overwriting without --overwrite")
	}
}

func TestFormatProgress(t *testing.T) {
	if got := formatProgress(65*time.Second, 10*time.Minute, 10.83); got != "00:01:05/00:10:00 (10.8%)" {
		t.Fatalf("unexpected progress text %q", got)
	}
	if got := formatProgress(5*time.Second, 0, 0); got != "00:00:05 (0.0%)" {
		t.Fatalf("unexpected progress text without total %q", got)
	}
}
