package download

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/parkerpayne/bard/config"
	"github.com/parkerpayne/bard/core/broadcast"
	"github.com/parkerpayne/bard/logger"
	"github.com/parkerpayne/bard/metrics"
	"github.com/parkerpayne/bard/model"
)

// Options 下载流水线参数
type Options struct {
	TempDir       string
	Workers       int
	QueueSize     int
	StageTimeout  time.Duration
	Retention     time.Duration
	SweepInterval time.Duration
}

// OptionsFromConfig reads pipeline settings from cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		TempDir:       cfg.TempDir,
		Workers:       cfg.DownloadWorkers,
		QueueSize:     cfg.DownloadQueueSize,
		StageTimeout:  cfg.StageTimeout,
		Retention:     cfg.JobRetention,
		SweepInterval: cfg.SweepInterval,
	}
}

// Deps are the collaborators of the pipeline. History is optional.
type Deps struct {
	Fetcher    Fetcher
	Transcoder Transcoder
	Library    Library
	Playlists  Playlists
	History    History
	Hub        broadcast.Publisher
}

// Manager 下载任务表 + 有界工作池
type Manager struct {
	opts Options
	deps Deps

	mu    sync.Mutex
	jobs  map[string]*model.Job
	order []string
	queue chan string

	now   func() time.Time
	newID func() string
	wg    sync.WaitGroup
}

func NewManager(opts Options, deps Deps) *Manager {
	if opts.Workers <= 0 {
		opts.Workers = 3
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.StageTimeout <= 0 {
		opts.StageTimeout = 300 * time.Second
	}
	if opts.Retention <= 0 {
		opts.Retention = 300 * time.Second
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = 60 * time.Second
	}
	return &Manager{
		opts:  opts,
		deps:  deps,
		jobs:  make(map[string]*model.Job),
		queue: make(chan string, opts.QueueSize),
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// Start launches the workers and the sweep loop. They exit when ctx is done.
func (m *Manager) Start(ctx context.Context) {
	if err := os.MkdirAll(m.opts.TempDir, 0755); err != nil {
		logger.Error("创建临时目录失败", logger.String("dir", m.opts.TempDir), logger.ErrorField(err))
	}

	for i := 0; i < m.opts.Workers; i++ {
		m.wg.Add(1)
		go m.worker(ctx, i)
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.opts.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Sweep()
			}
		}
	}()

	logger.Info("下载工作池已启动", logger.Int("workers", m.opts.Workers))
}

// Wait blocks until every worker has returned.
func (m *Manager) Wait() {
	m.wg.Wait()
}

func (m *Manager) worker(ctx context.Context, n int) {
	defer m.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-m.queue:
			logger.Debug("worker picked job", logger.Int("worker", n), logger.String("job_id", id))
			m.process(ctx, id)
		}
	}
}

// Submit creates a pending job and queues it. It never blocks.
func (m *Manager) Submit(url, target string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.newID()
	select {
	case m.queue <- id:
	default:
		return "", ErrQueueFull
	}

	job := &model.Job{
		ID:             id,
		URL:            url,
		TargetPlaylist: target,
		Status:         model.JobPending,
		Progress:       0,
		Message:        "Queued for download",
		CreatedAt:      m.now(),
	}
	m.jobs[id] = job
	m.order = append(m.order, id)
	m.broadcastLocked(job)

	logger.Info("下载任务已提交",
		logger.String("job_id", id),
		logger.String("url", url),
		logger.String("target_playlist", target))
	return id, nil
}

// broadcastLocked publishes the job. Caller holds m.mu.
func (m *Manager) broadcastLocked(job *model.Job) {
	if m.deps.Hub == nil {
		return
	}
	if err := m.deps.Hub.PublishEvent(broadcast.TopicDownloads, broadcast.EventDownloadUpdate, job); err != nil {
		logger.Warn("广播任务状态失败", logger.String("job_id", job.ID), logger.ErrorField(err))
	}
}

// update applies fn to the job and broadcasts the result.
func (m *Manager) update(id string, fn func(job *model.Job)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[id]
	if !ok {
		return
	}
	fn(job)
	m.broadcastLocked(job)
}

func (m *Manager) setStage(id string, status model.JobStatus, progress int, message string) {
	m.update(id, func(job *model.Job) {
		if !job.Status.CanTransition(status) {
			logger.Warn("非法任务状态迁移",
				logger.String("job_id", id),
				logger.String("from", string(job.Status)),
				logger.String("to", string(status)))
			return
		}
		job.Status = status
		job.Progress = progress
		job.Message = message
	})
}

func (m *Manager) setProgress(id string, progress int, message string) {
	m.update(id, func(job *model.Job) {
		if progress > job.Progress {
			job.Progress = progress
		}
		job.Message = message
	})
}

// Get returns a copy of the job.
func (m *Manager) Get(id string) (model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return model.Job{}, ErrJobNotFound
	}
	return *job, nil
}

// List returns copies of all tracked jobs in creation order.
func (m *Manager) List() []model.Job {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]model.Job, 0, len(m.order))
	for _, id := range m.order {
		if job, ok := m.jobs[id]; ok {
			out = append(out, *job)
		}
	}
	return out
}

// Recent returns active jobs plus jobs that finished within window.
func (m *Manager) Recent(window time.Duration) []model.Job {
	cutoff := m.now().Add(-window)
	all := m.List()
	out := all[:0]
	for _, job := range all {
		if !job.Status.Terminal() || !job.FinishedBefore(cutoff) {
			out = append(out, job)
		}
	}
	return out
}

// Sweep 清理超过保留期的已结束任务, 同时清理 Hub 中已关闭的订阅者
func (m *Manager) Sweep() int {
	cutoff := m.now().Add(-m.opts.Retention)

	m.mu.Lock()
	removed := 0
	kept := m.order[:0]
	for _, id := range m.order {
		job, ok := m.jobs[id]
		if ok && job.Status.Terminal() && job.FinishedBefore(cutoff) {
			delete(m.jobs, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	m.order = kept
	m.mu.Unlock()

	if s, ok := m.deps.Hub.(interface{ Sweep() int }); ok {
		s.Sweep()
	}
	if removed > 0 {
		logger.Debug("已清理过期任务", logger.Int("count", removed))
	}
	return removed
}

// process runs one job to completion. Only this function marks a job Failed.
func (m *Manager) process(ctx context.Context, id string) {
	job, err := m.Get(id)
	if err != nil {
		return
	}

	filename, runErr := m.runInTemp(ctx, job)

	var final model.Job
	finished := m.now()
	m.update(id, func(j *model.Job) {
		j.FinishedAt = &finished
		if runErr != nil {
			j.Status = model.JobFailed
			j.Error = runErr.Error()
			j.Message = "Download failed: " + runErr.Error()
		} else {
			j.Status = model.JobCompleted
			j.Progress = 100
			j.Message = "Download completed!"
			j.Filename = filename
		}
		final = *j
	})
	metrics.DownloadJobs.WithLabelValues(string(final.Status)).Inc()

	if runErr != nil {
		logger.Error("下载任务失败",
			logger.String("job_id", id),
			logger.String("url", job.URL),
			logger.ErrorField(runErr))
	} else {
		logger.Info("下载任务完成",
			logger.String("job_id", id),
			logger.String("filename", filename))
	}

	if m.deps.History != nil {
		hctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := m.deps.History.Record(hctx, final); err != nil {
			logger.Warn("记录任务历史失败", logger.String("job_id", id), logger.ErrorField(err))
		}
		cancel()
	}
}

// runInTemp gives the job its own temp dir, removed before the terminal
// status is published.
func (m *Manager) runInTemp(ctx context.Context, job model.Job) (string, error) {
	dir := filepath.Join(m.opts.TempDir, job.ID)
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			logger.Warn("清理临时目录失败", logger.String("dir", dir), logger.ErrorField(err))
		}
	}()
	return m.run(ctx, job, dir)
}
