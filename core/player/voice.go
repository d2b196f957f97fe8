package player

import (
	"context"
	"regexp"

	"github.com/parkerpayne/bard/model"
)

// Voice is the voice connection driven by the owner loop. Play returns once
// the stream has started; onComplete is called exactly once from the voice
// client's goroutine when the stream ends or is stopped.
type Voice interface {
	Ready() bool
	Connect(ctx context.Context, channelID string) error
	Disconnect(ctx context.Context) error
	Connected() bool
	ChannelID() string

	Play(ctx context.Context, path string, onComplete func(error)) error
	Pause()
	Resume()
	Stop()
	Playing() bool
	Paused() bool
}

// Bot is the gateway lifecycle behind the voice connection.
type Bot interface {
	Start(ctx context.Context, token string) error
	Shutdown(ctx context.Context)
}

// PlaylistSource 读取歌单
type PlaylistSource interface {
	Get(key string) (*model.Playlist, error)
}

// SettingsSource 读取保存的设置 (频道 ID)
type SettingsSource interface {
	Load() (model.Settings, error)
}

// Library resolves a playlist entry's file name to a path on disk.
type Library interface {
	Path(filename string) string
}

var channelIDPattern = regexp.MustCompile(`^\d{17,19}$`)

// ValidChannelID reports whether id looks like a Discord snowflake.
func ValidChannelID(id string) bool {
	return channelIDPattern.MatchString(id)
}
