package deps

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Blank", Command: "  "},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}

	if !results[0].Available {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[0].Detail != "" {
		t.Fatalf("unexpected detail for available dependency: %s", results[0].Detail)
	}

	if results[1].Available {
		t.Fatalf("expected missing binary to be unavailable")
	}
	if results[1].Detail == "" {
		t.Fatalf("expected detail message for missing binary")
	}
	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}

	if results[2].Available || results[2].Detail != "command not configured" {
		t.Fatalf("expected blank command to be reported, got %#v", results[2])
	}
}

func TestResolveFFprobePath(t *testing.T) {
	if got := ResolveFFprobePath("ffmpeg"); got != "ffprobe" {
		t.Fatalf("bare name: got %q", got)
	}
	if got := ResolveFFprobePath("/opt/ff/bin/ffmpeg"); got != "/opt/ff/bin/ffprobe" {
		t.Fatalf("absolute path: got %q", got)
	}
	if got := ResolveFFprobePath(""); got != "ffprobe" {
		t.Fatalf("empty: got %q", got)
	}
}

func TestFFmpegVersion(t *testing.T) {
	stub := filepath.Join(t.TempDir(), "ffmpeg")
	script := []byte("#!/bin/sh\necho 'ffmpeg version 7.1 Copyright (c) 2000-2024'\necho 'built with gcc'\n")
	if err := os.WriteFile(stub, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	version, err := FFmpegVersion(context.Background(), stub)
	if err != nil {
		t.Fatalf("FFmpegVersion: %v", err)
	}
	if version != "ffmpeg version 7.1 Copyright (c) 2000-2024" {
		t.Fatalf("unexpected version line %q", version)
	}
}

func TestFFmpegVersionFailure(t *testing.T) {
	stub := filepath.Join(t.TempDir(), "ffmpeg")
	if err := os.WriteFile(stub, []byte("#!/bin/sh\nexit 3\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	if _, err := FFmpegVersion(context.Background(), stub); err == nil {
		t.Fatal("expected error for failing binary")
	}
	if _, err := FFmpegVersion(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty binary")
	}
}
