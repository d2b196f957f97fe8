package download

import (
	"errors"
	"fmt"

	"github.com/parkerpayne/bard/repository"
)

var (
	// ErrQueueFull is returned by Submit when no more jobs can be queued.
	ErrQueueFull = errors.New("download queue is full")
	// ErrJobNotFound 任务不存在或已被清理
	ErrJobNotFound      = errors.New("job not found")
	ErrPlaylistNotFound = repository.ErrPlaylistNotFound
)

// FetchError 远程媒体获取失败
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
