// Package fetch wraps yt-dlp for probing and downloading remote media.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/lrstanley/go-ytdlp"

	"github.com/parkerpayne/bard/logger"
)

// ErrNoMedia is returned when yt-dlp finishes without producing a file.
var ErrNoMedia = errors.New("no extractable media")

var youtubePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^https?://(www\.)?youtube\.com/watch\?v=[\w-]+`),
	regexp.MustCompile(`^https?://(www\.)?youtu\.be/[\w-]+`),
	regexp.MustCompile(`^https?://(www\.)?youtube\.com/embed/[\w-]+`),
}

// ValidURL reports whether u looks like a single YouTube video link.
func ValidURL(u string) bool {
	u = strings.TrimSpace(u)
	for _, re := range youtubePatterns {
		if re.MatchString(u) {
			return true
		}
	}
	return false
}

// MediaInfo is the metadata yt-dlp reports before downloading.
type MediaInfo struct {
	ID       string
	Title    string
	Duration float64
}

// YtDlp downloads best-quality audio through the yt-dlp binary.
type YtDlp struct {
	binary string
}

// NewYtDlp creates a fetcher. An empty binary uses yt-dlp from PATH.
func NewYtDlp(binary string) *YtDlp {
	return &YtDlp{binary: binary}
}

func (y *YtDlp) command() *ytdlp.Command {
	cmd := ytdlp.New().
		NoPlaylist().
		NoWarnings().
		IgnoreConfig()
	if y.binary != "" {
		cmd.SetExecutable(y.binary)
	}
	if proxy := os.Getenv("YOUTUBE_PROXY"); proxy != "" {
		cmd.Proxy(proxy)
	}
	return cmd
}

// Probe resolves title and duration without downloading.
func (y *YtDlp) Probe(ctx context.Context, url string) (*MediaInfo, error) {
	res, err := y.command().
		SkipDownload().
		Print("%(id)s\t%(title)s\t%(duration)s").
		Run(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("yt-dlp probe %s: %w", url, err)
	}
	return parseProbe(res.Stdout)
}

func parseProbe(stdout string) (*MediaInfo, error) {
	line := strings.TrimSpace(stdout)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	parts := strings.Split(line, "\t")
	if len(parts) < 2 || strings.TrimSpace(parts[1]) == "" {
		return nil, ErrNoMedia
	}

	info := &MediaInfo{ID: parts[0], Title: strings.TrimSpace(parts[1])}
	if len(parts) > 2 {
		if d, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64); err == nil {
			info.Duration = d
		}
	}
	return info, nil
}

// Download fetches the best audio stream into dir and returns the file path.
func (y *YtDlp) Download(ctx context.Context, url, dir string) (string, error) {
	template := filepath.Join(dir, "source.%(ext)s")
	if _, err := y.command().
		Format("bestaudio/best").
		NoPart().
		Output(template).
		Run(ctx, url); err != nil {
		return "", fmt.Errorf("yt-dlp download %s: %w", url, err)
	}

	matches, err := filepath.Glob(filepath.Join(dir, "source.*"))
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", ErrNoMedia
	}

	logger.Debug("yt-dlp download finished",
		logger.String("url", url),
		logger.String("file", matches[0]))
	return matches[0], nil
}
