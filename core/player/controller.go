package player

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/parkerpayne/bard/config"
	"github.com/parkerpayne/bard/core/broadcast"
	"github.com/parkerpayne/bard/logger"
	"github.com/parkerpayne/bard/metrics"
	"github.com/parkerpayne/bard/model"
)

// Options 播放控制参数
type Options struct {
	CommandTimeout time.Duration
	SettleDelay    time.Duration
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		CommandTimeout: cfg.CommandTimeout,
		SettleDelay:    cfg.SettleDelay,
	}
}

// Deps are the collaborators of the controller.
type Deps struct {
	Voice     Voice
	Bot       Bot
	Playlists PlaylistSource
	Settings  SettingsSource
	Library   Library
	Hub       broadcast.Publisher
}

type command struct {
	id  string
	op  string
	run func(ctx context.Context) (string, error)
	// internal commands have no waiter
	internal bool
	// announce broadcasts player_state_change after a successful run
	announce bool
}

type response struct {
	id      string
	message string
	err     error
}

// Controller 播放控制器. 语音连接和播放会话只在 Run 的 owner loop 中修改,
// 其它 goroutine 通过命令通道提交操作并等待带相同 id 的响应.
type Controller struct {
	opts Options
	deps Deps

	commands chan command

	pendingMu sync.Mutex
	pending   map[string]chan response

	flags *StopFlags
	ended chan string
	clock *Clock

	// owned by the loop
	session session

	snapMu sync.RWMutex
	snap   model.PlayerState

	shuffle func([]model.Song)
	newID   func() string
	log     *zap.Logger
}

func NewController(opts Options, deps Deps) *Controller {
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = 10 * time.Second
	}
	if opts.SettleDelay < 0 {
		opts.SettleDelay = 0
	}
	c := &Controller{
		opts:     opts,
		deps:     deps,
		commands: make(chan command, 16),
		pending:  make(map[string]chan response),
		flags:    NewStopFlags(),
		ended:    make(chan string, 1),
		clock:    NewClock(nil),
		newID:    uuid.NewString,
		shuffle: func(songs []model.Song) {
			rand.Shuffle(len(songs), func(i, j int) { songs[i], songs[j] = songs[j], songs[i] })
		},
		log: logger.Named("player"),
	}
	c.session.reset()
	c.snap = c.session.state()
	return c
}

// Run is the owner loop. It also starts the auto-advance watcher and returns
// when ctx is cancelled.
func (c *Controller) Run(ctx context.Context) {
	go c.watch(ctx)

	c.log.Info("播放控制器已启动")
	for {
		select {
		case <-ctx.Done():
			c.log.Info("播放控制器已停止")
			return
		case cmd := <-c.commands:
			c.execute(ctx, cmd)
		}
	}
}

func (c *Controller) execute(ctx context.Context, cmd command) {
	var (
		msg string
		err error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%s: panic: %v", cmd.op, r)
			}
		}()
		msg, err = cmd.run(ctx)
	}()

	result := "ok"
	if err != nil {
		result = "error"
		c.log.Warn("命令执行失败", logger.String("op", cmd.op), logger.ErrorField(err))
	}
	metrics.PlayerCommands.WithLabelValues(cmd.op, result).Inc()

	c.publishSnapshot()
	if err == nil && cmd.announce {
		c.broadcast(broadcast.EventPlayerStateChange, c.Snapshot())
	}

	if cmd.internal {
		return
	}
	c.respond(response{id: cmd.id, message: msg, err: err})
}

// respond hands the result to the waiter registered under its id. A waiter
// that already timed out is gone and the response is dropped.
func (c *Controller) respond(resp response) {
	c.pendingMu.Lock()
	ch, ok := c.pending[resp.id]
	delete(c.pending, resp.id)
	c.pendingMu.Unlock()

	if !ok {
		c.log.Debug("丢弃迟到的响应", logger.String("id", resp.id))
		return
	}
	ch <- resp
}

// do submits fn to the owner loop and waits for its response.
func (c *Controller) do(ctx context.Context, op string, fn func(ctx context.Context) (string, error)) (string, error) {
	return c.call(ctx, command{op: op, run: fn})
}

func (c *Controller) call(ctx context.Context, cmd command) (string, error) {
	id := c.newID()
	cmd.id = id
	ch := make(chan response, 1)

	c.pendingMu.Lock()
	c.pending[id] = ch
	c.pendingMu.Unlock()

	deregister := func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}

	timer := time.NewTimer(c.opts.CommandTimeout)
	defer timer.Stop()

	select {
	case c.commands <- cmd:
	case <-timer.C:
		deregister()
		return "", ErrCommandTimeout
	case <-ctx.Done():
		deregister()
		return "", ctx.Err()
	}

	select {
	case resp := <-ch:
		return resp.message, resp.err
	case <-timer.C:
		deregister()
		return "", ErrCommandTimeout
	case <-ctx.Done():
		deregister()
		return "", ctx.Err()
	}
}

// enqueue submits an internal command without waiting for it.
func (c *Controller) enqueue(ctx context.Context, op string, fn func(ctx context.Context) (string, error)) {
	select {
	case c.commands <- command{id: c.newID(), op: op, run: fn, internal: true, announce: true}:
	case <-ctx.Done():
	}
}

// Snapshot returns a copy of the published state with a live clock and
// discord status.
func (c *Controller) Snapshot() model.PlayerState {
	c.snapMu.RLock()
	st := c.snap
	st.ShuffledQueue = append([]model.Song(nil), c.snap.ShuffledQueue...)
	c.snapMu.RUnlock()

	if st.ShuffledQueue == nil {
		st.ShuffledQueue = []model.Song{}
	}
	st.ElapsedTime = c.clock.Elapsed()
	st.SongDuration = c.clock.Duration()
	st.DiscordStatus = c.DiscordStatus()
	return st
}

// DiscordStatus reads the voice client directly; it is safe from any goroutine.
func (c *Controller) DiscordStatus() model.DiscordStatus {
	v := c.deps.Voice
	if v == nil {
		return model.DiscordStatus{}
	}
	st := model.DiscordStatus{
		BotReady:       v.Ready(),
		VoiceConnected: v.Connected(),
	}
	if st.VoiceConnected {
		st.CurrentChannelID = v.ChannelID()
	}
	return st
}

func (c *Controller) publishSnapshot() {
	st := c.session.state()
	c.snapMu.Lock()
	c.snap = st
	c.snapMu.Unlock()
}

func (c *Controller) broadcast(eventType string, payload any) {
	if c.deps.Hub == nil {
		return
	}
	if err := c.deps.Hub.PublishEvent(broadcast.TopicPlayer, eventType, payload); err != nil {
		c.log.Warn("广播播放器事件失败", logger.String("type", eventType), logger.ErrorField(err))
	}
}

// onComplete is the playback completion callback for identity id. It runs on
// the voice client's goroutine and only checks the flag and raises the signal.
func (c *Controller) onComplete(id string, err error) {
	if err != nil {
		c.log.Warn("播放出错", logger.String("identity", id), logger.ErrorField(err))
	}
	if c.flags.Consume(id) {
		c.log.Debug("手动停止, 不自动切歌", logger.String("identity", id))
		return
	}
	c.raiseEnded(id)
}

// raiseEnded sets the level-triggered song-ended signal. The latest identity wins.
func (c *Controller) raiseEnded(id string) {
	for {
		select {
		case c.ended <- id:
			return
		default:
		}
		select {
		case <-c.ended:
		default:
		}
	}
}
