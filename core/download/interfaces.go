package download

import (
	"context"

	"github.com/parkerpayne/bard/core/fetch"
	"github.com/parkerpayne/bard/model"
)

// Fetcher resolves and downloads remote media.
type Fetcher interface {
	Probe(ctx context.Context, url string) (*fetch.MediaInfo, error)
	Download(ctx context.Context, url, dir string) (string, error)
}

// Transcoder 音频转码与响度归一化
type Transcoder interface {
	Convert(ctx context.Context, in, out string) error
	Normalize(ctx context.Context, in, out string) error
	Duration(ctx context.Context, path string) (float64, error)
}

// Library moves a finished file into the catalog and returns its final name.
type Library interface {
	Import(src, title string) (string, error)
}

type Playlists interface {
	AppendSong(serialized string, song model.Song) error
}

// History records jobs once they reach a terminal status.
type History interface {
	Record(ctx context.Context, job model.Job) error
}
