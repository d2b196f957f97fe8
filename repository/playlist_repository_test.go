package repository

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/parkerpayne/bard/cache"
	"github.com/parkerpayne/bard/model"
)

func newPlaylists(t *testing.T) (PlaylistRepository, string) {
	t.Helper()
	dir := t.TempDir()
	repo, err := NewPlaylistRepository(dir, cache.NewMemoryListingCache(time.Minute))
	if err != nil {
		t.Fatalf("NewPlaylistRepository: %v", err)
	}
	return repo, dir
}

func TestPlaylistCreateAndList(t *testing.T) {
	ctx := context.Background()
	repo, dir := newPlaylists(t)

	p, err := repo.Create(ctx, "Road Trip", []string{"rock", "fun"}, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.SerializedName != Hash("Road Trip") {
		t.Errorf("SerializedName = %q", p.SerializedName)
	}
	if _, err := os.Stat(filepath.Join(dir, Hash("Road Trip")+".json")); err != nil {
		t.Errorf("playlist file missing: %v", err)
	}
	if _, err := repo.Create(ctx, "Road Trip", nil, nil); !errors.Is(err, ErrPlaylistExists) {
		t.Errorf("duplicate create err = %v", err)
	}

	if _, err := repo.Create(ctx, "Chill", []string{"fun", "calm"}, nil); err != nil {
		t.Fatalf("Create: %v", err)
	}

	idx, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(idx.Playlists) != 2 {
		t.Fatalf("got %d playlists", len(idx.Playlists))
	}
	if len(idx.Tags) != 3 {
		t.Errorf("tags = %v, want 3 distinct", idx.Tags)
	}
}

func TestPlaylistListCacheInvalidatedOnMutation(t *testing.T) {
	ctx := context.Background()
	repo, _ := newPlaylists(t)

	p, _ := repo.Create(ctx, "Mix", nil, nil)
	if idx, _ := repo.List(ctx); idx.Playlists[0].SongCount != 0 {
		t.Fatalf("SongCount = %d", idx.Playlists[0].SongCount)
	}

	song := model.Song{ID: "e1", LibrarySongID: "lib1", Title: "One", Filename: "One.mp3"}
	if err := repo.AddSong(ctx, p.SerializedName, song); err != nil {
		t.Fatalf("AddSong: %v", err)
	}
	idx, _ := repo.List(ctx)
	if idx.Playlists[0].SongCount != 1 {
		t.Errorf("stale listing after AddSong: SongCount = %d", idx.Playlists[0].SongCount)
	}
}

func TestPlaylistAddSongRejectsDuplicate(t *testing.T) {
	ctx := context.Background()
	repo, _ := newPlaylists(t)
	p, _ := repo.Create(ctx, "Mix", nil, nil)

	song := model.Song{ID: "e1", LibrarySongID: "lib1", Filename: "One.mp3"}
	if err := repo.AddSong(ctx, p.SerializedName, song); err != nil {
		t.Fatalf("AddSong: %v", err)
	}
	song.ID = "e2"
	if err := repo.AddSong(ctx, p.SerializedName, song); !errors.Is(err, ErrDuplicateSong) {
		t.Errorf("err = %v, want ErrDuplicateSong", err)
	}
	if err := repo.AppendSong(p.SerializedName, song); err != nil {
		t.Errorf("AppendSong should not check duplicates: %v", err)
	}
	got, _ := repo.Get(p.SerializedName)
	if len(got.Songs) != 2 {
		t.Errorf("songs = %d, want 2", len(got.Songs))
	}
}

func TestPlaylistUpdateRenameMovesFile(t *testing.T) {
	ctx := context.Background()
	repo, dir := newPlaylists(t)
	p, _ := repo.Create(ctx, "Old", []string{"a"}, nil)

	img := "static/img/new.png"
	updated, err := repo.Update(ctx, p.SerializedName, "New", []string{"b"}, &img)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.SerializedName != Hash("New") {
		t.Errorf("SerializedName = %q", updated.SerializedName)
	}
	if _, err := os.Stat(filepath.Join(dir, Hash("Old")+".json")); !os.IsNotExist(err) {
		t.Error("old file should be gone")
	}
	if _, err := repo.Get(p.SerializedName); !errors.Is(err, ErrPlaylistNotFound) {
		t.Errorf("Get old key err = %v", err)
	}
	got, err := repo.Get(Hash("New"))
	if err != nil {
		t.Fatalf("Get new key: %v", err)
	}
	if got.ImageRef() != img || got.Tags[0] != "b" {
		t.Errorf("got %+v", got)
	}
}

func TestPlaylistRemoveSongAndDelete(t *testing.T) {
	ctx := context.Background()
	repo, _ := newPlaylists(t)
	p, _ := repo.Create(ctx, "Mix", nil, nil)
	_ = repo.AppendSong(p.SerializedName, model.Song{ID: "e1", Filename: "a.mp3"})

	if err := repo.RemoveSong(ctx, p.SerializedName, "missing"); !errors.Is(err, ErrSongNotFound) {
		t.Errorf("err = %v", err)
	}
	if err := repo.RemoveSong(ctx, p.SerializedName, "e1"); err != nil {
		t.Fatalf("RemoveSong: %v", err)
	}

	deleted, err := repo.Delete(ctx, p.SerializedName)
	if err != nil || deleted.Name != "Mix" {
		t.Fatalf("Delete = %+v, %v", deleted, err)
	}
	if _, err := repo.Delete(ctx, p.SerializedName); !errors.Is(err, ErrPlaylistNotFound) {
		t.Errorf("second delete err = %v", err)
	}
}
