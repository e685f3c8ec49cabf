package ffmpeg

import (
	"strings"
	"testing"
	"time"
)

func TestProgressParserReportsAtBlockEnd(t *testing.T) {
	var p progressParser
	lines := []string{
		"frame=120",
		"out_time_us=5000000",
		"speed=2.1x",
	}
	for _, line := range lines {
		if _, ok := p.feed(line); ok {
			t.Fatalf("unexpected report before block end at %q", line)
		}
	}
	position, ok := p.feed("progress=continue")
	if !ok {
		t.Fatal("expected report at progress=continue")
	}
	if position != 5*time.Second {
		t.Fatalf("expected 5s, got %s", position)
	}
}

func TestProgressParserIgnoresBlocksWithoutPosition(t *testing.T) {
	var p progressParser
	if _, ok := p.feed("progress=continue"); ok {
		t.Fatal("expected no report before any out_time")
	}
	if _, ok := p.feed("out_time_us=N/A"); ok {
		t.Fatal("expected N/A to be ignored")
	}
	if _, ok := p.feed("garbage"); ok {
		t.Fatal("expected garbage to be ignored")
	}
}

func TestParseDurationBanner(t *testing.T) {
	d, ok := parseDurationBanner("  Duration: 00:42:10.50, start: 0.000000, bitrate: 5123 kb/s")
	if !ok {
		t.Fatal("expected banner to parse")
	}
	want := 42*time.Minute + 10*time.Second + 500*time.Millisecond
	if d != want {
		t.Fatalf("expected %s, got %s", want, d)
	}

	for _, line := range []string{
		"  Duration: N/A, bitrate: N/A",
		"Stream #0:0: Video: h264",
		"  Duration: 00:00:00.00, start: 0",
	} {
		if _, ok := parseDurationBanner(line); ok {
			t.Fatalf("expected %q to be rejected", line)
		}
	}
}

func TestTailBufferKeepsLastLines(t *testing.T) {
	tail := newTailBuffer(3)
	for _, line := range []string{"one", "", "two", "three", "four"} {
		tail.add(line)
	}
	if got := tail.String(); got != "two\nthree\nfour" {
		t.Fatalf("unexpected tail %q", got)
	}

	short := newTailBuffer(5)
	short.add("only")
	if got := short.String(); got != "only" {
		t.Fatalf("unexpected short tail %q", got)
	}
}

func TestScanLinesOrCR(t *testing.T) {
	data := []byte("a\rb\nc")
	var tokens []string
	for len(data) > 0 {
		advance, token, err := scanLinesOrCR(data, true)
		if err != nil {
			t.Fatal(err)
		}
		tokens = append(tokens, string(token))
		data = data[advance:]
	}
	if strings.Join(tokens, ",") != "a,b,c" {
		t.Fatalf("unexpected tokens %v", tokens)
	}
}
