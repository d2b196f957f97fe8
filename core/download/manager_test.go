package download

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/parkerpayne/bard/core/fetch"
	"github.com/parkerpayne/bard/model"
	"github.com/parkerpayne/bard/repository"
)

type recordingHub struct {
	mu   sync.Mutex
	jobs []model.Job
}

func (h *recordingHub) Publish(string, []byte) int { return 0 }

func (h *recordingHub) PublishEvent(_, _ string, payload any) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.jobs = append(h.jobs, *payload.(*model.Job))
	return nil
}

func (h *recordingHub) updates(id string) []model.Job {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []model.Job
	for _, j := range h.jobs {
		if j.ID == id {
			out = append(out, j)
		}
	}
	return out
}

type fakeFetcher struct {
	ext         string
	downloadErr error
}

func (f *fakeFetcher) Probe(context.Context, string) (*fetch.MediaInfo, error) {
	return &fetch.MediaInfo{ID: "abc", Title: "Test Song", Duration: 120}, nil
}

func (f *fakeFetcher) Download(_ context.Context, _, dir string) (string, error) {
	if f.downloadErr != nil {
		return "", f.downloadErr
	}
	path := filepath.Join(dir, "source"+f.ext)
	return path, os.WriteFile(path, []byte("media"), 0644)
}

type fakeTranscoder struct {
	converts     atomic.Int32
	normalizeErr error
}

func (t *fakeTranscoder) Convert(_ context.Context, in, out string) error {
	t.converts.Add(1)
	return os.WriteFile(out, []byte("mp3"), 0644)
}

func (t *fakeTranscoder) Normalize(_ context.Context, in, out string) error {
	// leave a partial output behind like an interrupted ffmpeg would
	if err := os.WriteFile(out, []byte("partial"), 0644); err != nil {
		return err
	}
	return t.normalizeErr
}

func (t *fakeTranscoder) Duration(context.Context, string) (float64, error) {
	return 183.25, nil
}

type fakeLibrary struct {
	dir string
}

func (l *fakeLibrary) Import(src, title string) (string, error) {
	name := title + ".mp3"
	return name, os.Rename(src, filepath.Join(l.dir, name))
}

type fakePlaylists struct {
	mu    sync.Mutex
	songs map[string][]model.Song
	err   error
}

func (p *fakePlaylists) AppendSong(key string, song model.Song) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	if p.songs == nil {
		p.songs = make(map[string][]model.Song)
	}
	p.songs[key] = append(p.songs[key], song)
	return nil
}

type fixture struct {
	m         *Manager
	hub       *recordingHub
	fetcher   *fakeFetcher
	tr        *fakeTranscoder
	playlists *fakePlaylists
	tempDir   string
	libDir    string
}

func newFixture(t *testing.T, ext string) *fixture {
	t.Helper()
	f := &fixture{
		hub:       &recordingHub{},
		fetcher:   &fakeFetcher{ext: ext},
		tr:        &fakeTranscoder{},
		playlists: &fakePlaylists{},
		tempDir:   t.TempDir(),
		libDir:    t.TempDir(),
	}
	f.m = NewManager(Options{TempDir: f.tempDir, Workers: 2, QueueSize: 8}, Deps{
		Fetcher:    f.fetcher,
		Transcoder: f.tr,
		Library:    &fakeLibrary{dir: f.libDir},
		Playlists:  f.playlists,
		Hub:        f.hub,
	})
	return f
}

func (f *fixture) start(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	f.m.Start(ctx)
	t.Cleanup(func() {
		cancel()
		f.m.Wait()
	})
}

func waitTerminal(t *testing.T, m *Manager, id string) model.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := m.Get(id)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if job.Status.Terminal() {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s did not finish", id)
	return model.Job{}
}

func TestJobStatusesAdvanceInOrder(t *testing.T) {
	f := newFixture(t, ".webm")
	f.start(t)

	id, err := f.m.Submit("https://youtu.be/abc", "pl1")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	job := waitTerminal(t, f.m, id)
	if job.Status != model.JobCompleted || job.Progress != 100 || job.Filename != "Test Song.mp3" {
		t.Fatalf("final job = %+v", job)
	}

	updates := f.hub.updates(id)
	if len(updates) == 0 || updates[0].Status != model.JobPending {
		t.Fatalf("first update should be pending: %+v", updates)
	}
	for i := 1; i < len(updates); i++ {
		prev, cur := updates[i-1], updates[i]
		if cur.Status.Rank() < prev.Status.Rank() {
			t.Errorf("status went backwards: %s -> %s", prev.Status, cur.Status)
		}
		if cur.Progress < prev.Progress {
			t.Errorf("progress went backwards: %d -> %d", prev.Progress, cur.Progress)
		}
	}
	seen := map[model.JobStatus]bool{}
	for _, u := range updates {
		seen[u.Status] = true
	}
	for _, s := range []model.JobStatus{model.JobDownloading, model.JobProcessing, model.JobNormalizing, model.JobMoving, model.JobCompleted} {
		if !seen[s] {
			t.Errorf("status %s never broadcast", s)
		}
	}

	if f.tr.converts.Load() != 1 {
		t.Errorf("converts = %d, want 1", f.tr.converts.Load())
	}
	songs := f.playlists.songs["pl1"]
	if len(songs) != 1 {
		t.Fatalf("playlist songs = %v", songs)
	}
	if songs[0].LibrarySongID != repository.Hash("Test Song.mp3") || songs[0].Duration != 183.25 {
		t.Errorf("song = %+v", songs[0])
	}
	if _, err := os.Stat(filepath.Join(f.libDir, "Test Song.mp3")); err != nil {
		t.Errorf("library file missing: %v", err)
	}
}

func TestMP3SkipsTranscode(t *testing.T) {
	f := newFixture(t, ".mp3")
	f.start(t)

	id, _ := f.m.Submit("https://youtu.be/abc", "")
	job := waitTerminal(t, f.m, id)
	if job.Status != model.JobCompleted {
		t.Fatalf("job = %+v", job)
	}
	if n := f.tr.converts.Load(); n != 0 {
		t.Errorf("converts = %d, want 0", n)
	}
	if len(f.playlists.songs) != 0 {
		t.Error("no target playlist, nothing should be appended")
	}
}

func TestNormalizeFailureCleansTempDir(t *testing.T) {
	f := newFixture(t, ".webm")
	f.tr.normalizeErr = errors.New("loudnorm exploded")
	f.start(t)

	id, _ := f.m.Submit("https://youtu.be/abc", "")
	job := waitTerminal(t, f.m, id)
	if job.Status != model.JobFailed {
		t.Fatalf("status = %s", job.Status)
	}
	if !strings.Contains(job.Error, "loudnorm exploded") {
		t.Errorf("Error = %q", job.Error)
	}
	if _, err := os.Stat(filepath.Join(f.tempDir, id)); !os.IsNotExist(err) {
		t.Errorf("job temp dir left behind: %v", err)
	}
	entries, _ := os.ReadDir(f.libDir)
	if len(entries) != 0 {
		t.Errorf("library should be untouched, got %d entries", len(entries))
	}
}

func TestFetchFailureMarksJobFailed(t *testing.T) {
	f := newFixture(t, ".webm")
	f.fetcher.downloadErr = fetch.ErrNoMedia
	f.start(t)

	id, _ := f.m.Submit("https://youtu.be/abc", "")
	job := waitTerminal(t, f.m, id)
	if job.Status != model.JobFailed || !strings.Contains(job.Error, fetch.ErrNoMedia.Error()) {
		t.Errorf("job = %+v", job)
	}
	if job.Title != "Test Song" {
		t.Errorf("title from probe should be kept, got %q", job.Title)
	}
}

func TestPlaylistAppendFailureFailsJob(t *testing.T) {
	f := newFixture(t, ".mp3")
	f.playlists.err = ErrPlaylistNotFound
	f.start(t)

	id, _ := f.m.Submit("https://youtu.be/abc", "gone")
	job := waitTerminal(t, f.m, id)
	if job.Status != model.JobFailed {
		t.Fatalf("status = %s", job.Status)
	}
	if !strings.Contains(job.Error, "playlist not found") {
		t.Errorf("Error = %q", job.Error)
	}
}

func TestSubmitQueueFull(t *testing.T) {
	m := NewManager(Options{TempDir: t.TempDir(), QueueSize: 1}, Deps{})

	if _, err := m.Submit("https://youtu.be/a", ""); err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	if _, err := m.Submit("https://youtu.be/b", ""); !errors.Is(err, ErrQueueFull) {
		t.Errorf("err = %v, want ErrQueueFull", err)
	}
	if n := len(m.List()); n != 1 {
		t.Errorf("rejected submit must not create a job, got %d jobs", n)
	}
}

func TestSweepAndRecent(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	m := NewManager(Options{TempDir: t.TempDir(), Retention: 300 * time.Second}, Deps{})
	m.now = func() time.Time { return now }

	old, _ := m.Submit("https://youtu.be/old", "")
	fresh, _ := m.Submit("https://youtu.be/fresh", "")
	active, _ := m.Submit("https://youtu.be/active", "")

	m.mu.Lock()
	m.jobs[old].Status = model.JobCompleted
	oldEnd := now.Add(-301 * time.Second)
	freshEnd := now.Add(-10 * time.Second)
	m.jobs[old].FinishedAt = &oldEnd
	m.jobs[fresh].Status = model.JobFailed
	m.jobs[fresh].FinishedAt = &freshEnd
	m.jobs[active].Status = model.JobNormalizing
	m.mu.Unlock()

	recent := m.Recent(30 * time.Second)
	if len(recent) != 2 || recent[0].ID != fresh || recent[1].ID != active {
		t.Errorf("Recent = %+v", recent)
	}

	if n := m.Sweep(); n != 1 {
		t.Errorf("Sweep removed %d, want 1", n)
	}
	if _, err := m.Get(old); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("old job still present: %v", err)
	}
	if len(m.List()) != 2 {
		t.Errorf("List = %d jobs", len(m.List()))
	}
}

// gatedFetcher holds every Probe until release is closed and records how
// many ran at once.
type gatedFetcher struct {
	fakeFetcher
	release chan struct{}

	mu     sync.Mutex
	active int
	peak   int
	calls  int
}

func (g *gatedFetcher) Probe(ctx context.Context, url string) (*fetch.MediaInfo, error) {
	g.mu.Lock()
	g.active++
	g.calls++
	if g.active > g.peak {
		g.peak = g.active
	}
	g.mu.Unlock()
	defer func() {
		g.mu.Lock()
		g.active--
		g.mu.Unlock()
	}()

	select {
	case <-g.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return g.fakeFetcher.Probe(ctx, url)
}

func (g *gatedFetcher) counts() (calls, peak int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls, g.peak
}

func TestWorkersBoundConcurrentJobs(t *testing.T) {
	f := newFixture(t, ".mp3")
	gated := &gatedFetcher{fakeFetcher: fakeFetcher{ext: ".mp3"}, release: make(chan struct{})}
	f.m = NewManager(Options{TempDir: f.tempDir, Workers: 2, QueueSize: 8}, Deps{
		Fetcher:    gated,
		Transcoder: f.tr,
		Library:    &fakeLibrary{dir: f.libDir},
		Hub:        f.hub,
	})
	f.start(t)

	var ids []string
	for i := 0; i < 4; i++ {
		id, err := f.m.Submit("https://youtu.be/abc", "")
		if err != nil {
			t.Fatalf("Submit %d: %v", i, err)
		}
		ids = append(ids, id)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if calls, _ := gated.counts(); calls == 2 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	// give a third worker, if there were one, time to pick up a job
	time.Sleep(50 * time.Millisecond)
	if calls, peak := gated.counts(); calls != 2 || peak != 2 {
		t.Fatalf("while blocked: %d jobs started, peak %d; want 2 and 2", calls, peak)
	}

	pending := 0
	for _, id := range ids {
		job, err := f.m.Get(id)
		if err != nil {
			t.Fatal(err)
		}
		if job.Status == model.JobPending {
			pending++
		}
	}
	if pending != 2 {
		t.Errorf("pending jobs while workers busy = %d, want 2", pending)
	}

	close(gated.release)
	for _, id := range ids {
		if job := waitTerminal(t, f.m, id); job.Status != model.JobCompleted {
			t.Errorf("job %s = %s (%s)", id, job.Status, job.Error)
		}
	}
	if calls, peak := gated.counts(); calls != 4 || peak != 2 {
		t.Errorf("after release: %d jobs ran, peak %d; want 4 and 2", calls, peak)
	}
}
