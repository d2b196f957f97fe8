package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/parkerpayne/bard/cache"
	"github.com/parkerpayne/bard/logger"
	"github.com/parkerpayne/bard/model"
)

// PlaylistRepository 歌单数据访问接口, 以 <key>.json 存储
type PlaylistRepository interface {
	List(ctx context.Context) (*model.PlaylistIndex, error)
	Get(key string) (*model.Playlist, error)
	Create(ctx context.Context, name string, tags []string, image *string) (*model.Playlist, error)
	Update(ctx context.Context, key, name string, tags []string, image *string) (*model.Playlist, error)
	Delete(ctx context.Context, key string) (*model.Playlist, error)

	// 歌曲管理
	AddSong(ctx context.Context, key string, song model.Song) error
	AppendSong(key string, song model.Song) error
	RemoveSong(ctx context.Context, key, entryID string) error
	RemoveLibrarySong(ctx context.Context, filename, libraryID string) ([]string, error)
}

// filePlaylistRepository 文件实现
type filePlaylistRepository struct {
	dir   string
	cache cache.ListingCache
	mu    sync.Mutex
}

// NewPlaylistRepository 创建文件歌单仓库
func NewPlaylistRepository(dir string, c cache.ListingCache) (PlaylistRepository, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create playlist dir %s: %w", dir, err)
	}
	return &filePlaylistRepository{dir: dir, cache: c}, nil
}

func (r *filePlaylistRepository) path(key string) string {
	return filepath.Join(r.dir, filepath.Base(key)+".json")
}

func (r *filePlaylistRepository) invalidate(ctx context.Context) {
	if r.cache != nil {
		r.cache.Invalidate(ctx, cache.KeyPlaylists)
	}
}

func (r *filePlaylistRepository) load(key string) (*model.Playlist, error) {
	var p model.Playlist
	if err := readJSON(r.path(key), &p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrPlaylistNotFound
		}
		return nil, fmt.Errorf("read playlist %s: %w", key, err)
	}
	if p.Name == "" {
		p.Name = "Unnamed Playlist"
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	if p.Songs == nil {
		p.Songs = []model.Song{}
	}
	p.SerializedName = key
	p.SongCount = len(p.Songs)
	return &p, nil
}

// save 写回文件, 派生字段不落盘
func (r *filePlaylistRepository) save(key string, p *model.Playlist) error {
	stored := *p
	stored.SerializedName = ""
	stored.SongCount = 0
	if err := writeJSON(r.path(key), &stored); err != nil {
		return fmt.Errorf("write playlist %s: %w", key, err)
	}
	p.SerializedName = key
	p.SongCount = len(p.Songs)
	return nil
}

// List 返回全部歌单和标签并集
func (r *filePlaylistRepository) List(ctx context.Context) (*model.PlaylistIndex, error) {
	if r.cache != nil {
		if data, ok := r.cache.Get(ctx, cache.KeyPlaylists); ok {
			var idx model.PlaylistIndex
			if err := json.Unmarshal(data, &idx); err == nil {
				return &idx, nil
			}
		}
	}

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("read playlist dir: %w", err)
	}

	idx := &model.PlaylistIndex{Playlists: []model.Playlist{}, Tags: []string{}}
	seen := make(map[string]bool)
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") || strings.HasPrefix(name, ".") {
			continue
		}
		p, err := r.load(strings.TrimSuffix(name, ".json"))
		if err != nil {
			logger.Warn("读取歌单失败", logger.String("file", name), logger.ErrorField(err))
			continue
		}
		for _, tag := range p.Tags {
			if !seen[tag] {
				seen[tag] = true
				idx.Tags = append(idx.Tags, tag)
			}
		}
		idx.Playlists = append(idx.Playlists, *p)
	}
	sort.SliceStable(idx.Playlists, func(i, j int) bool {
		return idx.Playlists[i].CreatedAt < idx.Playlists[j].CreatedAt
	})

	if r.cache != nil {
		if data, err := json.Marshal(idx); err == nil {
			r.cache.Set(ctx, cache.KeyPlaylists, data)
		}
	}
	return idx, nil
}

func (r *filePlaylistRepository) Get(key string) (*model.Playlist, error) {
	return r.load(key)
}

func (r *filePlaylistRepository) Create(ctx context.Context, name string, tags []string, image *string) (*model.Playlist, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := Hash(name)
	if _, err := os.Stat(r.path(key)); err == nil {
		return nil, ErrPlaylistExists
	}
	if tags == nil {
		tags = []string{}
	}
	p := &model.Playlist{
		Name:      name,
		Tags:      tags,
		Image:     image,
		Songs:     []model.Song{},
		CreatedAt: time.Now().Format(time.RFC3339),
	}
	if err := r.save(key, p); err != nil {
		return nil, err
	}
	r.invalidate(ctx)
	return p, nil
}

// Update 修改名称/标签/封面; 改名时文件迁移到新 key
func (r *filePlaylistRepository) Update(ctx context.Context, key, name string, tags []string, image *string) (*model.Playlist, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, err := r.load(key)
	if err != nil {
		return nil, err
	}

	newKey := key
	if name != "" && name != p.Name {
		newKey = Hash(name)
		if _, err := os.Stat(r.path(newKey)); err == nil {
			return nil, ErrPlaylistExists
		}
		p.Name = name
	}
	if tags != nil {
		p.Tags = tags
	}
	if image != nil {
		p.Image = image
	}

	if err := r.save(newKey, p); err != nil {
		return nil, err
	}
	if newKey != key {
		if err := os.Remove(r.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn("删除旧歌单文件失败", logger.String("key", key), logger.ErrorField(err))
		}
	}
	r.invalidate(ctx)
	return p, nil
}

// Delete removes the playlist and returns its last contents so callers can
// clean up artwork.
func (r *filePlaylistRepository) Delete(ctx context.Context, key string) (*model.Playlist, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, err := r.load(key)
	if err != nil {
		return nil, err
	}
	if err := os.Remove(r.path(key)); err != nil {
		return nil, fmt.Errorf("delete playlist %s: %w", key, err)
	}
	r.invalidate(ctx)
	return p, nil
}

// AddSong 从曲库添加歌曲, 同一曲库歌曲不可重复
func (r *filePlaylistRepository) AddSong(ctx context.Context, key string, song model.Song) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, err := r.load(key)
	if err != nil {
		return err
	}
	for _, s := range p.Songs {
		if song.LibrarySongID != "" && s.LibrarySongID == song.LibrarySongID {
			return ErrDuplicateSong
		}
	}
	p.Songs = append(p.Songs, song)
	if err := r.save(key, p); err != nil {
		return err
	}
	r.invalidate(ctx)
	return nil
}

// AppendSong appends without the duplicate check. Used by the download pipeline.
func (r *filePlaylistRepository) AppendSong(key string, song model.Song) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, err := r.load(key)
	if err != nil {
		return err
	}
	p.Songs = append(p.Songs, song)
	if err := r.save(key, p); err != nil {
		return err
	}
	r.invalidate(context.Background())
	return nil
}

func (r *filePlaylistRepository) RemoveSong(ctx context.Context, key, entryID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, err := r.load(key)
	if err != nil {
		return err
	}
	kept := p.Songs[:0]
	for _, s := range p.Songs {
		if s.ID != entryID {
			kept = append(kept, s)
		}
	}
	if len(kept) == len(p.Songs) {
		return ErrSongNotFound
	}
	p.Songs = kept
	if err := r.save(key, p); err != nil {
		return err
	}
	r.invalidate(ctx)
	return nil
}

// RemoveLibrarySong drops every entry referencing the library file from all
// playlists and returns the names of the playlists that changed.
func (r *filePlaylistRepository) RemoveLibrarySong(ctx context.Context, filename, libraryID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("read playlist dir: %w", err)
	}

	var changed []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") || strings.HasPrefix(name, ".") {
			continue
		}
		key := strings.TrimSuffix(name, ".json")
		p, err := r.load(key)
		if err != nil {
			logger.Warn("读取歌单失败", logger.String("file", name), logger.ErrorField(err))
			continue
		}

		kept := make([]model.Song, 0, len(p.Songs))
		for _, s := range p.Songs {
			if s.Filename == filename || (libraryID != "" && s.LibrarySongID == libraryID) {
				continue
			}
			kept = append(kept, s)
		}
		if len(kept) == len(p.Songs) {
			continue
		}
		p.Songs = kept
		if err := r.save(key, p); err != nil {
			logger.Warn("更新歌单失败", logger.String("key", key), logger.ErrorField(err))
			continue
		}
		changed = append(changed, p.Name)
	}

	if len(changed) > 0 {
		r.invalidate(ctx)
	}
	return changed, nil
}
