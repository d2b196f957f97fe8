// Package voicebot connects to Discord and streams library files into a voice
// channel.
package voicebot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/disgoorg/disgo"
	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/gateway"
	"github.com/disgoorg/disgo/voice"
	"github.com/disgoorg/snowflake/v2"
	"github.com/pion/webrtc/v4/pkg/media/oggreader"

	"github.com/parkerpayne/bard/core/audio"
	"github.com/parkerpayne/bard/logger"
)

// MinTokenLength is the shortest string accepted as a bot token.
const MinTokenLength = 50

var (
	ErrNotStarted      = errors.New("discord bot is not running")
	ErrChannelNotFound = errors.New("voice channel not found")
	ErrNotVoiceChannel = errors.New("channel is not a voice channel")
	ErrNoVoiceConn     = errors.New("not connected to voice channel")
)

var channelIDPattern = regexp.MustCompile(`^\d{17,19}$`)

// ValidToken reports whether token is long enough to be a bot token.
func ValidToken(token string) bool {
	return len(strings.TrimSpace(token)) >= MinTokenLength
}

// ValidChannelID reports whether id is a 17 to 19 digit snowflake.
func ValidChannelID(id string) bool {
	return channelIDPattern.MatchString(strings.TrimSpace(id))
}

// Handlers are called from the gateway goroutine.
type Handlers struct {
	// OnStatusChange fires when the bot becomes ready or goes away.
	OnStatusChange func()
	// OnDisconnect fires when the bot is removed from voice by Discord.
	OnDisconnect func()
}

// Client Discord 机器人与语音连接
type Client struct {
	ffmpeg *audio.FFmpegProcessor

	mu        sync.RWMutex
	client    *bot.Client
	conn      voice.Conn
	channelID string
	stream    *opusStream
	handlers  Handlers

	ready atomic.Bool
}

func NewClient(ffmpeg *audio.FFmpegProcessor) *Client {
	return &Client{ffmpeg: ffmpeg}
}

// SetHandlers installs the event callbacks.
func (c *Client) SetHandlers(h Handlers) {
	c.mu.Lock()
	c.handlers = h
	c.mu.Unlock()
}

func (c *Client) callbacks() Handlers {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.handlers
}

// Start 创建客户端并连接网关, 已在运行时先关闭
func (c *Client) Start(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if !ValidToken(token) {
		return fmt.Errorf("bot token must be at least %d characters", MinTokenLength)
	}
	c.Shutdown(ctx)

	client, err := disgo.New(token,
		bot.WithGatewayConfigOpts(
			gateway.WithIntents(gateway.IntentGuilds, gateway.IntentGuildVoiceStates),
		),
		bot.WithEventListenerFunc(c.onReady),
		bot.WithEventListenerFunc(c.onVoiceStateUpdate),
	)
	if err != nil {
		return fmt.Errorf("create discord client: %w", err)
	}

	if err := client.OpenGateway(ctx); err != nil {
		client.Close(context.Background())
		return fmt.Errorf("open discord gateway: %w", err)
	}

	c.mu.Lock()
	c.client = client
	c.mu.Unlock()

	logger.Info("Discord 网关已连接")
	return nil
}

// Shutdown leaves voice and closes the gateway. Safe to call when not started.
// Dropping a live voice connection here reports OnDisconnect like a kick does.
func (c *Client) Shutdown(ctx context.Context) {
	if c.release(ctx) {
		if h := c.callbacks(); h.OnDisconnect != nil {
			h.OnDisconnect()
		}
	}

	c.mu.Lock()
	client := c.client
	c.client = nil
	c.mu.Unlock()

	if client == nil {
		return
	}
	c.ready.Store(false)
	client.Close(ctx)
	logger.Info("Discord 机器人已关闭")

	if h := c.callbacks(); h.OnStatusChange != nil {
		h.OnStatusChange()
	}
}

func (c *Client) onReady(e *events.Ready) {
	c.ready.Store(true)
	logger.Info("Discord 机器人已就绪", logger.String("user", e.User.Username))
	if h := c.callbacks(); h.OnStatusChange != nil {
		h.OnStatusChange()
	}
}

// onVoiceStateUpdate notices when Discord removes the bot from voice.
func (c *Client) onVoiceStateUpdate(e *events.GuildVoiceStateUpdate) {
	if e.VoiceState.UserID != e.Client().ID() || e.VoiceState.ChannelID != nil {
		return
	}

	c.mu.Lock()
	conn := c.conn
	stream := c.stream
	c.conn = nil
	c.channelID = ""
	c.stream = nil
	c.mu.Unlock()

	if conn == nil {
		return
	}
	logger.Warn("机器人被移出语音频道", logger.String("guild_id", e.VoiceState.GuildID.String()))

	if stream != nil {
		stream.finish(nil)
	}
	go conn.Close(context.Background())

	if h := c.callbacks(); h.OnDisconnect != nil {
		h.OnDisconnect()
	}
}

func (c *Client) Ready() bool {
	return c.ready.Load()
}

func (c *Client) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil
}

func (c *Client) ChannelID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.channelID
}

// guildOf resolves the guild that owns channelID, from cache first.
func (c *Client) guildOf(client *bot.Client, channelID snowflake.ID) (snowflake.ID, error) {
	if ch, ok := client.Caches.Channel(channelID); ok {
		if ch.Type() != discord.ChannelTypeGuildVoice && ch.Type() != discord.ChannelTypeGuildStageVoice {
			return 0, ErrNotVoiceChannel
		}
		return ch.GuildID(), nil
	}

	ch, err := client.Rest.GetChannel(channelID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrChannelNotFound, err)
	}
	gc, ok := ch.(discord.GuildChannel)
	if !ok {
		return 0, ErrNotVoiceChannel
	}
	if gc.Type() != discord.ChannelTypeGuildVoice && gc.Type() != discord.ChannelTypeGuildStageVoice {
		return 0, ErrNotVoiceChannel
	}
	return gc.GuildID(), nil
}

// Connect 加入语音频道
func (c *Client) Connect(ctx context.Context, channelID string) error {
	c.mu.RLock()
	client := c.client
	c.mu.RUnlock()
	if client == nil {
		return ErrNotStarted
	}

	id, err := snowflake.Parse(strings.TrimSpace(channelID))
	if err != nil {
		return fmt.Errorf("parse channel id %q: %w", channelID, err)
	}
	guildID, err := c.guildOf(client, id)
	if err != nil {
		return err
	}

	conn := client.VoiceManager.CreateConn(guildID)
	if err := conn.Open(ctx, id, false, false); err != nil {
		conn.Close(context.Background())
		return fmt.Errorf("open voice connection: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.channelID = id.String()
	c.mu.Unlock()
	return nil
}

// Disconnect 离开语音频道, 未连接时直接返回
func (c *Client) Disconnect(ctx context.Context) error {
	c.release(ctx)
	return nil
}

// release closes the voice connection and reports whether one was open.
func (c *Client) release(ctx context.Context) bool {
	c.mu.Lock()
	conn := c.conn
	stream := c.stream
	c.conn = nil
	c.channelID = ""
	c.stream = nil
	c.mu.Unlock()

	if stream != nil {
		stream.finish(nil)
	}
	if conn == nil {
		return false
	}
	conn.SetOpusFrameProvider(nil)
	conn.Close(ctx)
	return true
}

// Play starts streaming path. onComplete runs once when the stream ends,
// fails, or is stopped.
func (c *Client) Play(ctx context.Context, path string, onComplete func(error)) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return ErrNoVoiceConn
	}
	if _, err := os.Stat(path); err != nil {
		return err
	}

	c.Stop()

	streamCtx, cancel := context.WithCancel(context.Background())
	cmd := c.ffmpeg.OggOpusCommand(streamCtx, path)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("ffmpeg stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("start ffmpeg: %w", err)
	}

	reader, _, err := oggreader.NewWith(stdout)
	if err != nil {
		cancel()
		_ = cmd.Wait()
		return fmt.Errorf("read ogg header: %w", err)
	}

	stream := &opusStream{
		pages:      reader,
		cancel:     cancel,
		wait:       cmd.Wait,
		onComplete: onComplete,
	}

	c.mu.Lock()
	c.stream = stream
	c.mu.Unlock()

	conn.SetOpusFrameProvider(stream)
	if err := conn.SetSpeaking(ctx, voice.SpeakingFlagMicrophone); err != nil {
		logger.Warn("设置说话状态失败", logger.ErrorField(err))
	}
	return nil
}

// Stop ends the current stream; its onComplete still fires.
func (c *Client) Stop() {
	c.mu.Lock()
	stream := c.stream
	conn := c.conn
	c.stream = nil
	c.mu.Unlock()

	if stream == nil {
		return
	}
	if conn != nil {
		conn.SetOpusFrameProvider(nil)
	}
	stream.finish(nil)
}

func (c *Client) current() *opusStream {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.stream == nil || !c.stream.active() {
		return nil
	}
	return c.stream
}

func (c *Client) Pause() {
	if s := c.current(); s != nil {
		s.paused.Store(true)
	}
}

func (c *Client) Resume() {
	if s := c.current(); s != nil {
		s.paused.Store(false)
	}
}

func (c *Client) Playing() bool {
	s := c.current()
	return s != nil && !s.paused.Load()
}

func (c *Client) Paused() bool {
	s := c.current()
	return s != nil && s.paused.Load()
}
