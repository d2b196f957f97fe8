package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/parkerpayne/bard/cache"
	"github.com/parkerpayne/bard/core/audio"
	"github.com/parkerpayne/bard/logger"
	"github.com/parkerpayne/bard/model"
)

var audioExtensions = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".flac": true,
	".m4a":  true,
}

// DurationProber reports the length of an audio file in seconds.
type DurationProber interface {
	Duration(ctx context.Context, path string) (float64, error)
}

// LibraryRepository 曲库目录访问接口
type LibraryRepository interface {
	Dir() string
	Path(filename string) string
	List(ctx context.Context) ([]model.LibrarySong, error)
	Song(ctx context.Context, id string) (*model.LibrarySong, error)
	Import(src, title string) (string, error)
	Rename(ctx context.Context, id, title string) (string, error)
	Delete(ctx context.Context, id string) (string, error)
	Invalidate(ctx context.Context)
}

type fileLibraryRepository struct {
	dir    string
	cache  cache.ListingCache
	prober DurationProber
	mu     sync.Mutex
}

// NewLibraryRepository 创建曲库仓库, prober 可为 nil
func NewLibraryRepository(dir string, c cache.ListingCache, prober DurationProber) (LibraryRepository, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create library dir %s: %w", dir, err)
	}
	return &fileLibraryRepository{dir: dir, cache: c, prober: prober}, nil
}

func (r *fileLibraryRepository) Dir() string {
	return r.dir
}

func (r *fileLibraryRepository) Path(filename string) string {
	return filepath.Join(r.dir, filepath.Base(filename))
}

func (r *fileLibraryRepository) Invalidate(ctx context.Context) {
	if r.cache != nil {
		r.cache.Invalidate(ctx, cache.KeyLibrary)
	}
}

func isAudio(name string) bool {
	return audioExtensions[strings.ToLower(filepath.Ext(name))]
}

func trimAudioExt(title string) string {
	for ext := range audioExtensions {
		title = strings.ReplaceAll(title, ext, "")
	}
	return title
}

// describe builds the listing entry for one file.
func (r *fileLibraryRepository) describe(ctx context.Context, name string) (*model.LibrarySong, error) {
	path := r.Path(name)
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	title := name
	if strings.EqualFold(filepath.Ext(name), ".mp3") {
		if t, err := audio.ReadTitle(path); err == nil && t != "" {
			title = t
		}
	}

	var duration float64
	if r.prober != nil {
		if d, err := r.prober.Duration(ctx, path); err == nil {
			duration = float64(int(d))
		} else {
			logger.Debug("读取时长失败", logger.String("file", name), logger.ErrorField(err))
		}
	}

	return &model.LibrarySong{
		ID:        Hash(name),
		Title:     trimAudioExt(title),
		Filename:  name,
		Duration:  duration,
		Size:      info.Size(),
		AddedDate: info.ModTime(),
	}, nil
}

// List 列出曲库歌曲, 最新的在前
func (r *fileLibraryRepository) List(ctx context.Context) ([]model.LibrarySong, error) {
	if r.cache != nil {
		if data, ok := r.cache.Get(ctx, cache.KeyLibrary); ok {
			var songs []model.LibrarySong
			if err := json.Unmarshal(data, &songs); err == nil {
				return songs, nil
			}
		}
	}

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("read library dir: %w", err)
	}

	songs := make([]model.LibrarySong, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !isAudio(e.Name()) {
			continue
		}
		s, err := r.describe(ctx, e.Name())
		if err != nil {
			logger.Warn("处理曲库文件失败", logger.String("file", e.Name()), logger.ErrorField(err))
			continue
		}
		songs = append(songs, *s)
	}
	sort.SliceStable(songs, func(i, j int) bool {
		return songs[i].AddedDate.After(songs[j].AddedDate)
	})

	if r.cache != nil {
		if data, err := json.Marshal(songs); err == nil {
			r.cache.Set(ctx, cache.KeyLibrary, data)
		}
	}
	return songs, nil
}

func (r *fileLibraryRepository) find(id string) (string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return "", fmt.Errorf("read library dir: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() && isAudio(e.Name()) && Hash(e.Name()) == id {
			return e.Name(), nil
		}
	}
	return "", ErrSongNotFound
}

func (r *fileLibraryRepository) Song(ctx context.Context, id string) (*model.LibrarySong, error) {
	name, err := r.find(id)
	if err != nil {
		return nil, err
	}
	return r.describe(ctx, name)
}

// Import 将处理完成的文件移入曲库, 文件名冲突时追加 " (n)"
func (r *fileLibraryRepository) Import(src, title string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ext := strings.ToLower(filepath.Ext(src))
	if ext == "" {
		ext = ".mp3"
	}
	name := uniqueName(r.dir, SafeName(title), ext, "")
	dst := filepath.Join(r.dir, name)

	if err := moveFile(src, dst); err != nil {
		return "", fmt.Errorf("move %s to library: %w", src, err)
	}
	if ext == ".mp3" {
		if err := audio.WriteTitle(dst, title); err != nil {
			logger.Warn("写入标题标签失败", logger.String("file", name), logger.ErrorField(err))
		}
	}

	r.Invalidate(context.Background())
	return name, nil
}

// Rename 重命名曲库歌曲并更新标题标签, 返回新文件名
func (r *fileLibraryRepository) Rename(ctx context.Context, id, title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", fmt.Errorf("title cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	old, err := r.find(id)
	if err != nil {
		return "", err
	}
	ext := filepath.Ext(old)
	name := uniqueName(r.dir, SafeName(title), ext, old)

	if name != old {
		if err := os.Rename(r.Path(old), r.Path(name)); err != nil {
			return "", fmt.Errorf("rename %s: %w", old, err)
		}
	}
	if strings.EqualFold(ext, ".mp3") {
		if err := audio.WriteTitle(r.Path(name), title); err != nil {
			logger.Warn("写入标题标签失败", logger.String("file", name), logger.ErrorField(err))
		}
	}

	r.Invalidate(ctx)
	return name, nil
}

// Delete 删除曲库文件, 返回被删除的文件名
func (r *fileLibraryRepository) Delete(ctx context.Context, id string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name, err := r.find(id)
	if err != nil {
		return "", err
	}
	if err := os.Remove(r.Path(name)); err != nil {
		return "", fmt.Errorf("delete %s: %w", name, err)
	}
	r.Invalidate(ctx)
	return name, nil
}
