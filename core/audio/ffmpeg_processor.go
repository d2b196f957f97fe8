package audio

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/parkerpayne/bard/config"
	"github.com/parkerpayne/bard/logger"
)

const stderrTail = 600

// TranscodeError is returned when ffmpeg exits non-zero or runs past its timeout.
type TranscodeError struct {
	Op       string
	Input    string
	TimedOut bool
	Stderr   string
	Err      error
}

func (e *TranscodeError) Error() string {
	if e.TimedOut {
		return fmt.Sprintf("ffmpeg %s timed out for %s", e.Op, e.Input)
	}
	if e.Stderr == "" {
		return fmt.Sprintf("ffmpeg %s failed for %s: %v", e.Op, e.Input, e.Err)
	}
	return fmt.Sprintf("ffmpeg %s failed for %s: %v\nFFmpeg Error: %s", e.Op, e.Input, e.Err, e.Stderr)
}

func (e *TranscodeError) Unwrap() error { return e.Err }

// FFmpegProcessor implements the Processor interface using ffmpeg.
type FFmpegProcessor struct {
	ffmpegPath  string
	ffprobePath string
	codec       string
	bitrate     string
	sampleRate  string
	timeout     time.Duration
}

var _ Processor = (*FFmpegProcessor)(nil)

// NewFFmpegProcessor creates a new FFmpegProcessor.
func NewFFmpegProcessor(cfg *config.Config) *FFmpegProcessor {
	ffprobe := cfg.FFprobePath
	if ffprobe == "" {
		ffprobe = strings.Replace(cfg.FFmpegPath, "ffmpeg", "ffprobe", 1)
	}
	return &FFmpegProcessor{
		ffmpegPath:  cfg.FFmpegPath,
		ffprobePath: ffprobe,
		codec:       cfg.AudioCodec,
		bitrate:     cfg.AudioBitrate,
		sampleRate:  cfg.AudioSampleRate,
		timeout:     cfg.StageTimeout,
	}
}

func (p *FFmpegProcessor) encodeArgs() []string {
	return []string{"-acodec", p.codec, "-ab", p.bitrate, "-ar", p.sampleRate, "-y"}
}

// Convert transcodes inputFile into the canonical mp3 format.
func (p *FFmpegProcessor) Convert(ctx context.Context, inputFile, outputFile string) error {
	args := append([]string{"-i", inputFile}, p.encodeArgs()...)
	return p.run(ctx, "convert", inputFile, append(args, outputFile))
}

// Normalize applies EBU R128 loudness normalization and re-encodes to mp3.
func (p *FFmpegProcessor) Normalize(ctx context.Context, inputFile, outputFile string) error {
	args := []string{"-i", inputFile, "-filter:a", "loudnorm"}
	args = append(args, p.encodeArgs()...)
	return p.run(ctx, "normalize", inputFile, append(args, outputFile))
}

func (p *FFmpegProcessor) run(ctx context.Context, op, inputFile string, args []string) error {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, p.ffmpegPath, args...)
	cmd.WaitDelay = 2 * time.Second
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	logger.Debug("执行 FFmpeg 命令",
		logger.String("op", op),
		logger.String("cmd", p.ffmpegPath+" "+strings.Join(args, " ")))

	start := time.Now()
	if err := cmd.Run(); err != nil {
		terr := &TranscodeError{Op: op, Input: inputFile, Err: err, Stderr: tail(stderr.String(), stderrTail)}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			terr.TimedOut = true
			terr.Err = ctx.Err()
		}
		return terr
	}

	logger.Debug("FFmpeg 处理完成",
		logger.String("op", op),
		logger.String("input", inputFile),
		logger.Duration("took", time.Since(start)))
	return nil
}

// Available runs `ffmpeg -version` to confirm the binary can be executed.
func (p *FFmpegProcessor) Available(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := exec.CommandContext(ctx, p.ffmpegPath, "-version").Run(); err != nil {
		return fmt.Errorf("ffmpeg is not installed or not available: %w", err)
	}
	return nil
}

// OggOpusCommand builds an ffmpeg process that writes inputFile to stdout as
// Ogg/Opus at 48kHz stereo with one 20ms frame per page.
func (p *FFmpegProcessor) OggOpusCommand(ctx context.Context, inputFile string) *exec.Cmd {
	return exec.CommandContext(ctx, p.ffmpegPath,
		"-hide_banner", "-loglevel", "error",
		"-i", inputFile,
		"-vn",
		"-c:a", "libopus",
		"-b:a", "128k",
		"-ar", "48000",
		"-ac", "2",
		"-frame_duration", "20",
		"-page_duration", "20000",
		"-f", "ogg",
		"pipe:1",
	)
}

// ffprobeOutput defines the structure for ffprobe JSON output.
type ffprobeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Duration uses ffprobe to get the duration of an audio file in seconds.
func (p *FFmpegProcessor) Duration(ctx context.Context, inputFile string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "json",
		inputFile,
	}

	cmd := exec.CommandContext(ctx, p.ffprobePath, args...)
	var out bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("ffprobe execution failed for %s: %w\nFFprobe Error: %s", inputFile, err, stderr.String())
	}

	var probeData ffprobeOutput
	if err := json.Unmarshal(out.Bytes(), &probeData); err != nil {
		return 0, fmt.Errorf("failed to unmarshal ffprobe output for %s: %w", inputFile, err)
	}

	if probeData.Format.Duration == "" {
		return 0, fmt.Errorf("duration not found in ffprobe output for %s", inputFile)
	}

	duration, err := strconv.ParseFloat(probeData.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration string %q for %s: %w", probeData.Format.Duration, inputFile, err)
	}
	return duration, nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
