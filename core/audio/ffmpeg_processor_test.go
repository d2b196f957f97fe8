package audio

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/parkerpayne/bard/config"
)

const fakeFFmpeg = `#!/bin/sh
if [ -n "$FAKE_FFMPEG_FAIL" ]; then
  echo "Invalid data found when processing input" >&2
  exit 1
fi
if [ -n "$FAKE_FFMPEG_SLEEP" ]; then
  exec sleep "$FAKE_FFMPEG_SLEEP"
fi
for last; do :; done
if [ "$last" = "-version" ]; then
  echo "ffmpeg version fake"
  exit 0
fi
echo "$@" > "$last.args"
printf 'encoded' > "$last"
`

const fakeFFprobe = `#!/bin/sh
echo '{"format":{"duration":"183.250000"}}'
`

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func newTestProcessor(t *testing.T, timeout time.Duration) (*FFmpegProcessor, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.FromEnv()
	cfg.FFmpegPath = writeScript(t, dir, "ffmpeg", fakeFFmpeg)
	cfg.FFprobePath = writeScript(t, dir, "ffprobe", fakeFFprobe)
	cfg.StageTimeout = timeout
	return NewFFmpegProcessor(cfg), dir
}

func TestConvertArgs(t *testing.T) {
	p, dir := newTestProcessor(t, 5*time.Second)
	in := filepath.Join(dir, "in.webm")
	out := filepath.Join(dir, "out.mp3")
	if err := os.WriteFile(in, []byte("webm"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := p.Convert(context.Background(), in, out); err != nil {
		t.Fatalf("Convert: %v", err)
	}
	args, err := os.ReadFile(out + ".args")
	if err != nil {
		t.Fatalf("read args: %v", err)
	}
	want := "-i " + in + " -acodec libmp3lame -ab 192k -ar 44100 -y " + out
	if strings.TrimSpace(string(args)) != want {
		t.Errorf("args = %q\nwant %q", strings.TrimSpace(string(args)), want)
	}
}

func TestNormalizeUsesLoudnorm(t *testing.T) {
	p, dir := newTestProcessor(t, 5*time.Second)
	out := filepath.Join(dir, "norm.mp3")

	if err := p.Normalize(context.Background(), filepath.Join(dir, "in.mp3"), out); err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	args, _ := os.ReadFile(out + ".args")
	if !strings.Contains(string(args), "-filter:a loudnorm") {
		t.Errorf("normalize args missing loudnorm: %s", args)
	}
}

func TestConvertFailureCarriesDiagnostic(t *testing.T) {
	p, dir := newTestProcessor(t, 5*time.Second)
	t.Setenv("FAKE_FFMPEG_FAIL", "1")

	err := p.Convert(context.Background(), "in.webm", filepath.Join(dir, "out.mp3"))
	var terr *TranscodeError
	if !errors.As(err, &terr) {
		t.Fatalf("err = %v, want *TranscodeError", err)
	}
	if terr.TimedOut {
		t.Error("failure should not be reported as timeout")
	}
	if !strings.Contains(terr.Error(), "Invalid data found") {
		t.Errorf("diagnostic missing from %q", terr.Error())
	}
}

func TestNormalizeTimeout(t *testing.T) {
	p, dir := newTestProcessor(t, 100*time.Millisecond)
	t.Setenv("FAKE_FFMPEG_SLEEP", "5")

	start := time.Now()
	err := p.Normalize(context.Background(), "in.mp3", filepath.Join(dir, "out.mp3"))
	var terr *TranscodeError
	if !errors.As(err, &terr) || !terr.TimedOut {
		t.Fatalf("err = %v, want timed out TranscodeError", err)
	}
	if time.Since(start) > 4*time.Second {
		t.Errorf("timeout took %v", time.Since(start))
	}
}

func TestDuration(t *testing.T) {
	p, _ := newTestProcessor(t, time.Second)
	d, err := p.Duration(context.Background(), "song.mp3")
	if err != nil {
		t.Fatalf("Duration: %v", err)
	}
	if d != 183.25 {
		t.Errorf("Duration = %v, want 183.25", d)
	}
}

func TestAvailable(t *testing.T) {
	p, _ := newTestProcessor(t, time.Second)
	if err := p.Available(context.Background()); err != nil {
		t.Errorf("Available: %v", err)
	}

	p.ffmpegPath = filepath.Join(t.TempDir(), "missing-ffmpeg")
	if err := p.Available(context.Background()); err == nil {
		t.Error("missing binary should be reported")
	}
}

func TestWriteAndReadTitle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "song.mp3")
	if err := os.WriteFile(path, []byte("not really audio"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := WriteTitle(path, "Café del Mar"); err != nil {
		t.Fatalf("WriteTitle: %v", err)
	}
	if err := WriteTitle(path, "Second Title"); err != nil {
		t.Fatalf("WriteTitle again: %v", err)
	}
	title, err := ReadTitle(path)
	if err != nil {
		t.Fatalf("ReadTitle: %v", err)
	}
	if title != "Second Title" {
		t.Errorf("title = %q", title)
	}
}
