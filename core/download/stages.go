package download

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/parkerpayne/bard/core/fetch"
	"github.com/parkerpayne/bard/logger"
	"github.com/parkerpayne/bard/metrics"
	"github.com/parkerpayne/bard/model"
	"github.com/parkerpayne/bard/repository"
)

// stage runs fn under the stage timeout and records its duration.
func (m *Manager) stage(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	sctx, cancel := context.WithTimeout(ctx, m.opts.StageTimeout)
	defer cancel()

	start := time.Now()
	err := fn(sctx)
	metrics.StageSeconds.WithLabelValues(name).Observe(time.Since(start).Seconds())
	return err
}

// replace runs fn(in, out) and removes in once out exists.
func replace(in, out string, fn func(in, out string) error) (string, error) {
	if err := fn(in, out); err != nil {
		return "", err
	}
	if err := os.Remove(in); err != nil {
		logger.Warn("删除中间文件失败", logger.String("file", in), logger.ErrorField(err))
	}
	return out, nil
}

// run executes fetch, transcode, normalize, move and append in order and
// returns the library file name.
func (m *Manager) run(ctx context.Context, job model.Job, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create job dir: %w", err)
	}

	// 1. fetch
	m.setStage(job.ID, model.JobDownloading, 10, "Downloading from YouTube...")

	var info *fetch.MediaInfo
	var src string
	err := m.stage(ctx, "fetch", func(ctx context.Context) error {
		probed, err := m.deps.Fetcher.Probe(ctx, job.URL)
		if err != nil {
			return &FetchError{URL: job.URL, Err: err}
		}
		info = probed
		m.update(job.ID, func(j *model.Job) {
			j.Title = probed.Title
			j.Progress = 20
			j.Message = "Downloading audio..."
		})

		src, err = m.deps.Fetcher.Download(ctx, job.URL, dir)
		if err != nil {
			return &FetchError{URL: job.URL, Err: err}
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	// 2. transcode
	m.setStage(job.ID, model.JobProcessing, 40, "Extracting audio...")
	if !strings.EqualFold(filepath.Ext(src), ".mp3") {
		err := m.stage(ctx, "transcode", func(ctx context.Context) error {
			out, err := replace(src, filepath.Join(dir, "converted.mp3"), func(in, out string) error {
				return m.deps.Transcoder.Convert(ctx, in, out)
			})
			src = out
			return err
		})
		if err != nil {
			return "", err
		}
	}

	// 3. normalize
	m.setStage(job.ID, model.JobNormalizing, 70, "Normalizing audio levels...")
	err = m.stage(ctx, "normalize", func(ctx context.Context) error {
		out, err := replace(src, filepath.Join(dir, "normalized.mp3"), func(in, out string) error {
			return m.deps.Transcoder.Normalize(ctx, in, out)
		})
		src = out
		return err
	})
	if err != nil {
		return "", err
	}

	// 4. move into the library
	m.setStage(job.ID, model.JobMoving, 90, "Moving to library...")

	duration := info.Duration
	if job.TargetPlaylist != "" {
		_ = m.stage(ctx, "probe", func(ctx context.Context) error {
			d, err := m.deps.Transcoder.Duration(ctx, src)
			if err != nil {
				logger.Warn("读取时长失败, 使用元数据时长", logger.String("job_id", job.ID), logger.ErrorField(err))
				return err
			}
			duration = d
			return nil
		})
	}

	var filename string
	err = m.stage(ctx, "move", func(context.Context) error {
		name, err := m.deps.Library.Import(src, info.Title)
		if err != nil {
			return fmt.Errorf("move to library: %w", err)
		}
		filename = name
		return nil
	})
	if err != nil {
		return "", err
	}

	// 5. playlist append
	if job.TargetPlaylist == "" {
		return filename, nil
	}
	m.setProgress(job.ID, 95, "Adding to playlist...")

	song := model.Song{
		ID:            uuid.NewString(),
		LibrarySongID: repository.Hash(filename),
		Title:         info.Title,
		Filename:      filename,
		Duration:      duration,
		AddedAt:       m.now().Format(time.RFC3339),
	}
	if err := m.deps.Playlists.AppendSong(job.TargetPlaylist, song); err != nil {
		return "", fmt.Errorf("add to playlist %s: %w", job.TargetPlaylist, err)
	}
	return filename, nil
}
