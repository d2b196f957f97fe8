package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ErrArtworkNotFound is returned when no stored image matches the name.
var ErrArtworkNotFound = errors.New("artwork not found")

// ArtworkStore stores playlist images. Save returns the public reference
// written into the playlist record.
type ArtworkStore interface {
	Save(ctx context.Context, name, ext string, r io.Reader, size int64) (string, error)
	Open(ctx context.Context, name string) (io.ReadCloser, string, error)
	Delete(ctx context.Context, ref string) error
}

const artworkPrefix = "static/img/"

// ArtworkName derives the stored file name from the playlist key and the
// uploaded file extension, defaulting to .jpg.
func ArtworkName(key, uploadName string) string {
	ext := strings.ToLower(filepath.Ext(uploadName))
	if ext == "" {
		ext = ".jpg"
	}
	return key + ext
}

func contentType(name string) string {
	if ct := mime.TypeByExtension(strings.ToLower(path.Ext(name))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// refName strips the public prefix from a stored reference.
func refName(ref string) string {
	return path.Base(strings.TrimPrefix(ref, artworkPrefix))
}

// LocalArtworkStore 本地目录存储封面
type LocalArtworkStore struct {
	dir string
}

// NewLocalArtworkStore creates the directory if needed.
func NewLocalArtworkStore(dir string) (*LocalArtworkStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create artwork dir %s: %w", dir, err)
	}
	return &LocalArtworkStore{dir: dir}, nil
}

func (s *LocalArtworkStore) Save(_ context.Context, name, _ string, r io.Reader, _ int64) (string, error) {
	name = filepath.Base(name)
	f, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		return "", err
	}
	return artworkPrefix + name, nil
}

func (s *LocalArtworkStore) Open(_ context.Context, name string) (io.ReadCloser, string, error) {
	name = filepath.Base(name)
	f, err := os.Open(filepath.Join(s.dir, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, "", ErrArtworkNotFound
		}
		return nil, "", err
	}
	return f, contentType(name), nil
}

func (s *LocalArtworkStore) Delete(_ context.Context, ref string) error {
	if ref == "" {
		return nil
	}
	err := os.Remove(filepath.Join(s.dir, refName(ref)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
