package player

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/parkerpayne/bard/core/broadcast"
	"github.com/parkerpayne/bard/logger"
	"github.com/parkerpayne/bard/model"
)

// JoinVoice 加入语音频道, 已在该频道时直接返回
func (c *Controller) JoinVoice(ctx context.Context, channelID string) (string, error) {
	return c.do(ctx, "join_voice", func(ctx context.Context) (string, error) {
		return c.joinVoice(ctx, channelID)
	})
}

// LeaveVoice 离开语音频道并重置播放会话
func (c *Controller) LeaveVoice(ctx context.Context) (string, error) {
	return c.call(ctx, command{op: "leave_voice", run: c.leaveVoice, announce: true})
}

// RestartBot 使用新令牌重启机器人. 旧连接在 owner loop 中释放并重置会话,
// 之后网关在调用方的 goroutine 中重新连接.
func (c *Controller) RestartBot(ctx context.Context, token string) (string, error) {
	if c.deps.Bot == nil {
		return "", ErrBotNotReady
	}
	if _, err := c.call(ctx, command{op: "restart_bot", run: c.releaseBot, announce: true}); err != nil {
		return "", err
	}
	if err := c.deps.Bot.Start(ctx, token); err != nil {
		return "", fmt.Errorf("start discord bot: %w", err)
	}
	return "Discord bot restarted", nil
}

// PlaySong plays a single file outside of any playlist.
func (c *Controller) PlaySong(ctx context.Context, path string) (string, error) {
	return c.do(ctx, "play_song", func(ctx context.Context) (string, error) {
		if err := c.playFile(ctx, path); err != nil {
			return "", err
		}
		c.session.current = nil
		c.session.playing = true
		c.session.paused = false
		c.clock.Start(0)
		return "Song started playing", nil
	})
}

// PlayPlaylist 打乱歌单并从第一首开始播放, 未连接时自动加入配置的频道
func (c *Controller) PlayPlaylist(ctx context.Context, key string) (string, error) {
	return c.do(ctx, "play_playlist", func(ctx context.Context) (string, error) {
		return c.playPlaylist(ctx, key)
	})
}

func (c *Controller) PauseResume(ctx context.Context) (string, error) {
	return c.do(ctx, "pause_resume", c.pauseResume)
}

func (c *Controller) StopPlayback(ctx context.Context) (string, error) {
	return c.do(ctx, "stop", c.stopPlayback)
}

func (c *Controller) Next(ctx context.Context) (string, error) {
	return c.do(ctx, "next", func(ctx context.Context) (string, error) {
		return c.skip(ctx, 1, true)
	})
}

func (c *Controller) Previous(ctx context.Context) (string, error) {
	return c.do(ctx, "previous", func(ctx context.Context) (string, error) {
		return c.skip(ctx, -1, true)
	})
}

// NotifyStatusChange broadcasts the bot/voice status. Safe from any goroutine.
func (c *Controller) NotifyStatusChange() {
	c.broadcast(broadcast.EventDiscordStatusChange, c.DiscordStatus())
}

// HandleDisconnect is called by the voice client when the bot leaves voice
// without being asked to. It does not wait for the loop.
func (c *Controller) HandleDisconnect(ctx context.Context) {
	c.enqueue(ctx, "disconnect", func(context.Context) (string, error) {
		c.stopCurrent()
		c.resetSession()
		c.broadcast(broadcast.EventDiscordStatusChange, c.DiscordStatus())
		c.log.Info("语音连接已断开, 播放状态已重置")
		return "", nil
	})
}

func (c *Controller) joinVoice(ctx context.Context, channelID string) (string, error) {
	channelID = strings.TrimSpace(channelID)
	if !ValidChannelID(channelID) {
		return "", fmt.Errorf("%w: %q", ErrInvalidChannel, channelID)
	}
	v := c.deps.Voice
	if !v.Ready() {
		return "", ErrBotNotReady
	}

	if v.Connected() {
		if v.ChannelID() == channelID {
			return "Already connected to voice channel", nil
		}
		c.stopCurrent()
		if err := v.Disconnect(ctx); err != nil {
			logger.Warn("断开旧语音频道失败", logger.String("channel_id", v.ChannelID()), logger.ErrorField(err))
		}
	}

	if err := v.Connect(ctx, channelID); err != nil {
		return "", fmt.Errorf("join voice channel %s: %w", channelID, err)
	}
	c.broadcast(broadcast.EventDiscordStatusChange, c.DiscordStatus())
	logger.Info("已加入语音频道", logger.String("channel_id", channelID))
	return "Joined voice channel", nil
}

func (c *Controller) leaveVoice(ctx context.Context) (string, error) {
	v := c.deps.Voice
	msg := "Not connected to voice channel"
	if v.Connected() {
		c.stopCurrent()
		if err := v.Disconnect(ctx); err != nil {
			return "", fmt.Errorf("leave voice channel: %w", err)
		}
		msg = "Left voice channel"
	}
	c.resetSession()
	c.broadcast(broadcast.EventDiscordStatusChange, c.DiscordStatus())
	return msg, nil
}

// releaseBot stops playback, leaves voice and closes the gateway.
func (c *Controller) releaseBot(ctx context.Context) (string, error) {
	v := c.deps.Voice
	if v.Connected() {
		c.stopCurrent()
		if err := v.Disconnect(ctx); err != nil {
			logger.Warn("断开语音频道失败", logger.ErrorField(err))
		}
	}
	c.resetSession()
	c.deps.Bot.Shutdown(ctx)
	c.broadcast(broadcast.EventDiscordStatusChange, c.DiscordStatus())
	return "Discord bot stopped", nil
}

func (c *Controller) resetSession() {
	c.session.reset()
	c.flags.Reset()
	c.clock.Reset()
}

// stopCurrent stops an active stream, flagging its identity first so the
// completion does not advance the queue.
func (c *Controller) stopCurrent() {
	v := c.deps.Voice
	if !v.Playing() && !v.Paused() {
		return
	}
	c.flags.Mark(c.session.identity)
	v.Stop()
}

// playFile streams path under a fresh identity.
func (c *Controller) playFile(ctx context.Context, path string) error {
	v := c.deps.Voice
	if !v.Connected() {
		return ErrNotConnected
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, filepath.Base(path))
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}

	c.stopCurrent()

	id := c.newID()
	c.session.identity = id
	if err := v.Play(ctx, path, func(err error) { c.onComplete(id, err) }); err != nil {
		c.session.identity = ""
		return fmt.Errorf("play %s: %w", filepath.Base(path), err)
	}
	logger.Debug("开始播放", logger.String("identity", id), logger.String("file", filepath.Base(path)))
	return nil
}

func (c *Controller) playPlaylist(ctx context.Context, key string) (string, error) {
	p, err := c.deps.Playlists.Get(key)
	if err != nil {
		return "", fmt.Errorf("load playlist %s: %w", key, err)
	}
	if len(p.Songs) == 0 {
		return "", ErrEmptyQueue
	}

	if !c.deps.Voice.Connected() {
		settings, err := c.deps.Settings.Load()
		if err != nil {
			return "", fmt.Errorf("load settings: %w", err)
		}
		channelID := strings.TrimSpace(settings.Discord.ChannelID)
		if channelID == "" {
			return "", ErrNoChannel
		}
		if _, err := c.joinVoice(ctx, channelID); err != nil {
			return "", err
		}
	}

	c.flags.Reset()
	c.stopCurrent()

	queue := append([]model.Song(nil), p.Songs...)
	c.shuffle(queue)
	c.session.queue = queue
	c.session.index = 0
	c.session.identity = ""
	c.session.playlist = &model.PlaylistRef{Name: p.Name, Image: p.Image}

	if err := c.startIndex(ctx, 0); err != nil {
		return "", err
	}
	return "Playlist started playing", nil
}

// startIndex plays queue[i] and updates the session on success.
func (c *Controller) startIndex(ctx context.Context, i int) error {
	song := c.session.queue[i]
	if err := c.playFile(ctx, c.deps.Library.Path(song.Filename)); err != nil {
		return err
	}
	c.session.current = &song
	c.session.playing = true
	c.session.paused = false
	c.clock.Start(song.Duration)
	return nil
}

func (c *Controller) skip(ctx context.Context, direction int, manual bool) (string, error) {
	n := len(c.session.queue)
	if n == 0 {
		return "", ErrEmptyQueue
	}
	if !c.deps.Voice.Connected() {
		return "", ErrNotConnected
	}
	if manual {
		c.stopCurrent()
	}

	c.session.index = wrap(c.session.index, direction, n)
	if err := c.startIndex(ctx, c.session.index); err != nil {
		return "", err
	}
	return "Now playing: " + c.session.current.Title, nil
}

func (c *Controller) pauseResume(context.Context) (string, error) {
	v := c.deps.Voice
	if !v.Connected() {
		return "", ErrNotConnected
	}
	switch {
	case v.Playing():
		v.Pause()
		c.session.playing = false
		c.session.paused = true
		c.clock.Pause()
		return "Playback paused", nil
	case v.Paused():
		v.Resume()
		c.session.playing = true
		c.session.paused = false
		c.clock.Resume()
		return "Playback resumed", nil
	default:
		return "", ErrNothingPlaying
	}
}

func (c *Controller) stopPlayback(context.Context) (string, error) {
	v := c.deps.Voice
	if !v.Connected() {
		return "", ErrNotConnected
	}
	// 自然结束后等待切歌期间 identity 仍在, 也视为可停止
	if !v.Playing() && !v.Paused() && c.session.identity == "" {
		return "", ErrNothingPlaying
	}
	c.stopCurrent()
	c.session.identity = ""
	c.session.playing = false
	c.session.paused = false
	c.clock.Reset()
	return "Playback stopped", nil
}

// advance handles a natural end of identity ended.
func (c *Controller) advance(ctx context.Context, ended string) (string, error) {
	if ended != c.session.identity {
		c.log.Debug("忽略过期的结束信号", logger.String("identity", ended))
		return "", nil
	}
	if len(c.session.queue) == 0 {
		c.session.identity = ""
		c.session.playing = false
		c.session.paused = false
		c.clock.Reset()
		return "", nil
	}
	return c.skip(ctx, 1, false)
}
