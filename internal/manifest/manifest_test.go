package manifest_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"convoy/internal/job"
	"convoy/internal/manifest"
)

const sample = `
output_dir = "out"

[[job]]
source = "https://cdn.example.com/s01e02/master.m3u8"
title = "The Show"
season = 1
episode = 2

[[job]]
source = "https://cdn.example.com/theme.m3u8"
title = "Theme"
extension = "mp3"

[[job]]
source = "https://cdn.example.com/film.m3u8"
title = "Film"
year = 1999

[[job]]
source = "https://cdn.example.com/broken.m3u8"
title = "Broken"
extension = "avi"
`

func TestLoadBuildsDescriptors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "batch.toml")
	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	m, err := manifest.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.OutputDir != filepath.Join(dir, "out") {
		t.Fatalf("expected relative output dir resolved against manifest, got %q", m.OutputDir)
	}
	if len(m.Descriptors) != 3 {
		t.Fatalf("expected 3 descriptors, got %d", len(m.Descriptors))
	}
	names := []string{m.Descriptors[0].FileName(), m.Descriptors[1].FileName(), m.Descriptors[2].FileName()}
	want := []string{"The Show - S01E02.mp4", "Theme.mp3", "Film (1999).mp4"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("descriptor %d: expected %q, got %q", i, want[i], names[i])
		}
	}
	if m.Descriptors[1].Kind() != job.KindSong || !m.Descriptors[1].AudioOnly() {
		t.Fatalf("expected audio entry to infer song kind, got %s", m.Descriptors[1].Kind())
	}

	if len(m.Issues) != 1 {
		t.Fatalf("expected 1 issue, got %d", len(m.Issues))
	}
	issue := m.Issues[0]
	if issue.Index != 3 || !errors.Is(issue.Err, job.ErrUnsupportedExtension) {
		t.Fatalf("unexpected issue %+v", issue)
	}
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := manifest.Parse(strings.NewReader("[[job]]\nsource = \"a\"\ntitel = \"typo\"\n"))
	if err == nil || !strings.Contains(err.Error(), "titel") {
		t.Fatalf("expected unknown key error naming titel, got %v", err)
	}
}

func TestParseRequiresJobs(t *testing.T) {
	_, err := manifest.Parse(strings.NewReader("output_dir = \"/tmp\"\n"))
	if !errors.Is(err, manifest.ErrEmpty) {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
}

func TestEntryValidation(t *testing.T) {
	season := 1
	cases := []struct {
		name  string
		entry manifest.Entry
	}{
		{name: "missing source", entry: manifest.Entry{Title: "x"}},
		{name: "unknown kind", entry: manifest.Entry{Source: "s", Kind: "podcast"}},
		{name: "series without episode", entry: manifest.Entry{Source: "s", Kind: "series", Season: &season}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := tc.entry.Descriptor(); !errors.Is(err, job.ErrInvalidDescriptor) {
				t.Fatalf("expected ErrInvalidDescriptor, got %v", err)
			}
		})
	}

	d, err := manifest.Entry{Source: "s"}.Descriptor()
	if err != nil {
		t.Fatalf("Descriptor: %v", err)
	}
	if d.Title() != job.DefaultTitle || d.FileName() != "Untitled.mp4" {
		t.Fatalf("expected untitled movie, got %q / %q", d.Title(), d.FileName())
	}
}
