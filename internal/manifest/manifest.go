// Package manifest reads batch files for `convoy run`.
//
// A manifest is TOML with an optional top-level output_dir and one [[job]]
// table per conversion:
//
//	output_dir = "~/Videos/convoy"
//
//	[[job]]
//	source = "https://example.com/show/s01e02/master.m3u8"
//	title = "The Show"
//	kind = "series"
//	season = 1
//	episode = 2
//
// Entries that do not form a valid descriptor are reported as issues rather
// than failing the whole file.
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"convoy/internal/config"
	"convoy/internal/job"
)

// ErrEmpty is returned when a manifest has no [[job]] entries.
var ErrEmpty = errors.New("manifest has no [[job]] entries")

// Entry is one [[job]] table as written.
type Entry struct {
	Source    string `toml:"source"`
	Title     string `toml:"title"`
	Kind      string `toml:"kind"`
	Extension string `toml:"extension"`
	Season    *int   `toml:"season"`
	Episode   *int   `toml:"episode"`
	Year      *int   `toml:"year"`
}

type file struct {
	OutputDir string  `toml:"output_dir"`
	Jobs      []Entry `toml:"job"`
}

// Issue describes an entry that could not be turned into a descriptor.
type Issue struct {
	// Index is the zero-based position of the entry in the file.
	Index int
	Entry Entry
	Err   error
}

// Manifest is a parsed batch file.
type Manifest struct {
	Path        string
	OutputDir   string
	Descriptors []job.Descriptor
	Issues      []Issue
}

// Load reads and parses the manifest at path. A relative output_dir is
// resolved against the manifest's directory.
func Load(path string) (*Manifest, error) {
	expanded, err := config.ExpandPath(path)
	if err != nil {
		return nil, fmt.Errorf("resolve manifest path: %w", err)
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	m, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", expanded, err)
	}
	m.Path = expanded
	if m.OutputDir != "" && !filepath.IsAbs(m.OutputDir) {
		m.OutputDir = filepath.Join(filepath.Dir(expanded), m.OutputDir)
	}
	return m, nil
}

// Parse decodes a manifest. Unknown keys are errors so typos surface early.
func Parse(r io.Reader) (*Manifest, error) {
	var raw file
	dec := toml.NewDecoder(r).DisallowUnknownFields()
	if err := dec.Decode(&raw); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return nil, fmt.Errorf("unknown manifest keys:\n%s", strict.String())
		}
		return nil, err
	}
	if len(raw.Jobs) == 0 {
		return nil, ErrEmpty
	}

	m := &Manifest{}
	if dir := strings.TrimSpace(raw.OutputDir); dir != "" {
		expanded, err := config.ExpandPath(dir)
		if err != nil {
			return nil, fmt.Errorf("output_dir: %w", err)
		}
		m.OutputDir = expanded
	}
	for i, entry := range raw.Jobs {
		d, err := entry.Descriptor()
		if err != nil {
			m.Issues = append(m.Issues, Issue{Index: i, Entry: entry, Err: err})
			continue
		}
		m.Descriptors = append(m.Descriptors, d)
	}
	return m, nil
}

// Descriptor converts the entry. An empty extension means video. An empty
// kind is inferred: season or episode means series, audio means song,
// anything else is a movie.
func (e Entry) Descriptor() (job.Descriptor, error) {
	ext := job.ExtensionVideo
	if strings.TrimSpace(e.Extension) != "" {
		parsed, err := job.ParseExtension(e.Extension)
		if err != nil {
			return job.Descriptor{}, err
		}
		ext = parsed
	}

	var kind job.Kind
	switch {
	case strings.TrimSpace(e.Kind) != "":
		parsed, err := job.ParseKind(e.Kind)
		if err != nil {
			return job.Descriptor{}, err
		}
		kind = parsed
	case e.Season != nil || e.Episode != nil:
		kind = job.KindSeries
	case ext == job.ExtensionAudio:
		kind = job.KindSong
	default:
		kind = job.KindMovie
	}

	return job.NewDescriptor(job.Params{
		SourceRef: e.Source,
		Title:     e.Title,
		Kind:      kind,
		Extension: ext,
		Season:    e.Season,
		Episode:   e.Episode,
		Year:      e.Year,
	})
}
