package job

import (
	"fmt"
	"strings"

	"convoy/internal/textutil"
)

// DefaultTitle replaces an empty title.
const DefaultTitle = "Untitled"

// Kind classifies the content a descriptor refers to.
type Kind string

const (
	KindSeries Kind = "series"
	KindMovie  Kind = "movie"
	KindSong   Kind = "song"
)

// ParseKind converts a manifest value into a Kind.
func ParseKind(value string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(value))) {
	case KindSeries, "episode", "tv":
		return KindSeries, nil
	case KindMovie, "film":
		return KindMovie, nil
	case KindSong, "music", "track":
		return KindSong, nil
	default:
		return "", fmt.Errorf("%w: unknown kind %q", ErrInvalidDescriptor, value)
	}
}

func (k Kind) valid() bool {
	switch k {
	case KindSeries, KindMovie, KindSong:
		return true
	}
	return false
}

// Extension selects the output container.
type Extension string

const (
	ExtensionVideo Extension = "video"
	ExtensionAudio Extension = "audio"
)

var extensionSuffixes = map[Extension]string{
	ExtensionVideo: ".mp4",
	ExtensionAudio: ".mp3",
}

// ParseExtension converts a manifest value into an Extension. Both the
// logical names and their suffixes are accepted.
func ParseExtension(value string) (Extension, error) {
	normalized := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(value), "."))
	switch normalized {
	case "video", "mp4":
		return ExtensionVideo, nil
	case "audio", "mp3":
		return ExtensionAudio, nil
	default:
		return "", fmt.Errorf("%w: %w: %q", ErrInvalidDescriptor, ErrUnsupportedExtension, value)
	}
}

// Suffix returns the file suffix, including the leading dot.
func (e Extension) Suffix() (string, error) {
	suffix, ok := extensionSuffixes[e]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedExtension, string(e))
	}
	return suffix, nil
}

// Params is the raw input for NewDescriptor.
type Params struct {
	SourceRef string
	Title     string
	Kind      Kind
	Extension Extension
	Season    *int
	Episode   *int
	Year      *int
}

// Identity is the comparable duplicate-detection key of a descriptor.
type Identity struct {
	SourceRef string
	Title     string
	Kind      Kind
	Season    int
	Episode   int
	HasSeason bool
	HasEp     bool
}

func (id Identity) String() string {
	if id.HasSeason || id.HasEp {
		return fmt.Sprintf("%s|%s|%s|S%02dE%02d", id.Kind, id.Title, id.SourceRef, id.Season, id.Episode)
	}
	return fmt.Sprintf("%s|%s|%s", id.Kind, id.Title, id.SourceRef)
}

// Descriptor is the immutable description of one unit of work.
type Descriptor struct {
	sourceRef    string
	title        string
	cleanedTitle string
	kind         Kind
	extension    Extension
	suffix       string
	season       *int
	episode      *int
	year         *int
}

// NewDescriptor validates params and derives the cleaned title and output
// suffix. Every failure wraps ErrInvalidDescriptor; an unmapped extension
// additionally wraps ErrUnsupportedExtension.
func NewDescriptor(p Params) (Descriptor, error) {
	title := strings.TrimSpace(p.Title)
	if title == "" {
		title = DefaultTitle
	}
	d := Descriptor{
		sourceRef:    strings.TrimSpace(p.SourceRef),
		title:        title,
		cleanedTitle: textutil.StripIllegalFileChars(title),
		kind:         p.Kind,
		extension:    p.Extension,
		season:       copyInt(p.Season),
		episode:      copyInt(p.Episode),
		year:         copyInt(p.Year),
	}
	if d.cleanedTitle == "" {
		d.cleanedTitle = DefaultTitle
	}
	suffix, err := p.Extension.Suffix()
	if err != nil {
		return Descriptor{}, fmt.Errorf("%w: %w", ErrInvalidDescriptor, err)
	}
	d.suffix = suffix
	if err := d.Validate(); err != nil {
		return Descriptor{}, err
	}
	return d, nil
}

// Validate reports whether the descriptor can be scheduled. The zero value is
// invalid.
func (d Descriptor) Validate() error {
	if d.suffix == "" {
		if _, err := d.extension.Suffix(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidDescriptor, err)
		}
		return fmt.Errorf("%w: descriptor was not constructed with NewDescriptor", ErrInvalidDescriptor)
	}
	if d.sourceRef == "" {
		return fmt.Errorf("%w: source reference is required", ErrInvalidDescriptor)
	}
	if !d.kind.valid() {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidDescriptor, string(d.kind))
	}
	if d.kind == KindSeries && (d.season == nil || d.episode == nil) {
		return fmt.Errorf("%w: series %q requires season and episode", ErrInvalidDescriptor, d.title)
	}
	for _, field := range []struct {
		label string
		value *int
	}{{"season", d.season}, {"episode", d.episode}, {"year", d.year}} {
		if field.value != nil && *field.value < 0 {
			return fmt.Errorf("%w: %s must not be negative", ErrInvalidDescriptor, field.label)
		}
	}
	return nil
}

func (d Descriptor) SourceRef() string { return d.sourceRef }
func (d Descriptor) Title() string { return d.title }
func (d Descriptor) CleanedTitle() string { return d.cleanedTitle }
func (d Descriptor) Kind() Kind { return d.kind }
func (d Descriptor) Extension() Extension { return d.extension }
func (d Descriptor) AudioOnly() bool { return d.extension == ExtensionAudio }
func (d Descriptor) Season() (int, bool) { return deref(d.season) }
func (d Descriptor) Episode() (int, bool) { return deref(d.episode) }
func (d Descriptor) Year() (int, bool) { return deref(d.year) }

// FileName derives the output file name from the cleaned title.
func (d Descriptor) FileName() string {
	base := d.cleanedTitle
	switch d.kind {
	case KindSeries:
		season, _ := d.Season()
		episode, _ := d.Episode()
		base = fmt.Sprintf("%s - S%02dE%02d", base, season, episode)
	case KindMovie:
		if year, ok := d.Year(); ok && year > 0 {
			base = fmt.Sprintf("%s (%d)", base, year)
		}
	}
	return base + d.suffix
}

// Identity returns the duplicate-detection key.
func (d Descriptor) Identity() Identity {
	season, hasSeason := d.Season()
	episode, hasEp := d.Episode()
	return Identity{
		SourceRef: d.sourceRef,
		Title:     d.title,
		Kind:      d.kind,
		Season:    season,
		Episode:   episode,
		HasSeason: hasSeason,
		HasEp:     hasEp,
	}
}

// String renders the output file name.
func (d Descriptor) String() string {
	return d.FileName()
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func deref(v *int) (int, bool) {
	if v == nil {
		return 0, false
	}
	return *v, true
}

// Int returns a pointer to v; handy for optional Params fields.
func Int(v int) *int {
	return &v
}
