package ffmpeg

import (
	"bytes"
	"strconv"
	"strings"
	"time"
)

// progressParser consumes `-progress pipe:1` key=value lines. ffmpeg emits a
// block of keys terminated by a progress=continue|end line; a report is
// produced at each block end.
type progressParser struct {
	position time.Duration
	seen     bool
}

func (p *progressParser) feed(line string) (time.Duration, bool) {
	key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
	if !ok {
		return 0, false
	}
	switch key {
	case "out_time_us", "out_time_ms":
		// out_time_ms is microseconds as well; ffmpeg kept the misnamed key.
		micros, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil || micros < 0 {
			return 0, false
		}
		p.position = time.Duration(micros) * time.Microsecond
		p.seen = true
	case "progress":
		if !p.seen {
			return 0, false
		}
		return p.position, true
	}
	return 0, false
}

// parseDurationBanner extracts the input length from a stderr line such as
// "  Duration: 00:42:10.52, start: 0.000000, bitrate: 5123 kb/s".
func parseDurationBanner(line string) (time.Duration, bool) {
	idx := strings.Index(line, "Duration:")
	if idx < 0 {
		return 0, false
	}
	rest := strings.TrimSpace(line[idx+len("Duration:"):])
	if comma := strings.IndexByte(rest, ','); comma >= 0 {
		rest = rest[:comma]
	}
	return parseClock(rest)
}

// parseClock parses HH:MM:SS(.frac).
func parseClock(value string) (time.Duration, bool) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) != 3 {
		return 0, false
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil || hours < 0 {
		return 0, false
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil || minutes < 0 || minutes > 59 {
		return 0, false
	}
	seconds, err := strconv.ParseFloat(parts[2], 64)
	if err != nil || seconds < 0 || seconds >= 60 {
		return 0, false
	}
	d := time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds*float64(time.Second))
	if d <= 0 {
		return 0, false
	}
	return d, true
}

// tailBuffer keeps the last N stderr lines for error reports.
type tailBuffer struct {
	lines []string
	max   int
	next  int
	full  bool
}

func newTailBuffer(max int) *tailBuffer {
	if max <= 0 {
		max = defaultTailLines
	}
	return &tailBuffer{lines: make([]string, max), max: max}
}

func (t *tailBuffer) add(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	t.lines[t.next] = line
	t.next = (t.next + 1) % t.max
	if t.next == 0 {
		t.full = true
	}
}

func (t *tailBuffer) String() string {
	var ordered []string
	if t.full {
		ordered = append(ordered, t.lines[t.next:]...)
	}
	ordered = append(ordered, t.lines[:t.next]...)
	return strings.Join(ordered, "\n")
}

// scanLinesOrCR splits on \n or \r so carriage-return status lines do not
// accumulate into one token.
func scanLinesOrCR(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
