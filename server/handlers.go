package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/parkerpayne/bard/config"
	"github.com/parkerpayne/bard/core/auth"
	"github.com/parkerpayne/bard/core/broadcast"
	"github.com/parkerpayne/bard/core/download"
	"github.com/parkerpayne/bard/core/player"
	"github.com/parkerpayne/bard/logger"
	"github.com/parkerpayne/bard/model"
	"github.com/parkerpayne/bard/repository"
	"github.com/parkerpayne/bard/storage"
)

// Downloads is the part of the download manager the handlers use.
type Downloads interface {
	Submit(url, target string) (string, error)
	Recent(window time.Duration) []model.Job
}

// Player 播放控制器接口
type Player interface {
	PlayPlaylist(ctx context.Context, key string) (string, error)
	PauseResume(ctx context.Context) (string, error)
	Next(ctx context.Context) (string, error)
	Previous(ctx context.Context) (string, error)
	StopPlayback(ctx context.Context) (string, error)
	JoinVoice(ctx context.Context, channelID string) (string, error)
	LeaveVoice(ctx context.Context) (string, error)
	RestartBot(ctx context.Context, token string) (string, error)
	Snapshot() model.PlayerState
	DiscordStatus() model.DiscordStatus
}

// FFmpegChecker reports whether the ffmpeg binary can be executed.
type FFmpegChecker interface {
	Available(ctx context.Context) error
}

// Events is the subscribe side of the event hub.
type Events interface {
	Subscribe(topic string) *broadcast.Subscriber
	Unsubscribe(sub *broadcast.Subscriber)
}

// APIHandler 处理所有API请求
type APIHandler struct {
	cfg         *config.Config
	tokens      *auth.TokenIssuer
	playlists   repository.PlaylistRepository
	library     repository.LibraryRepository
	settings    repository.SettingsRepository
	credentials repository.CredentialsRepository
	artwork     storage.ArtworkStore
	downloads   Downloads
	player      Player
	ffmpeg      FFmpegChecker
	events      Events
}

// Deps 构造 APIHandler 所需的依赖
type Deps struct {
	Config      *config.Config
	Tokens      *auth.TokenIssuer
	Playlists   repository.PlaylistRepository
	Library     repository.LibraryRepository
	Settings    repository.SettingsRepository
	Credentials repository.CredentialsRepository
	Artwork     storage.ArtworkStore
	Downloads   Downloads
	Player      Player
	FFmpeg      FFmpegChecker
	Events      Events
}

// NewAPIHandler 创建新的API处理器
func NewAPIHandler(d Deps) *APIHandler {
	return &APIHandler{
		cfg:         d.Config,
		tokens:      d.Tokens,
		playlists:   d.Playlists,
		library:     d.Library,
		settings:    d.Settings,
		credentials: d.Credentials,
		artwork:     d.Artwork,
		downloads:   d.Downloads,
		player:      d.Player,
		ffmpeg:      d.FFmpeg,
		events:      d.Events,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("写入响应失败", logger.ErrorField(err))
	}
}

func writeSuccess(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": message})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"success": false, "error": message})
}

// writeErr maps a domain error onto its status code.
func writeErr(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, repository.ErrPlaylistNotFound),
		errors.Is(err, repository.ErrSongNotFound),
		errors.Is(err, player.ErrNotFound),
		errors.Is(err, download.ErrJobNotFound),
		errors.Is(err, storage.ErrArtworkNotFound):
		return http.StatusNotFound
	case errors.Is(err, repository.ErrPlaylistExists),
		errors.Is(err, repository.ErrDuplicateSong):
		return http.StatusConflict
	case errors.Is(err, repository.ErrInvalidCredentials),
		errors.Is(err, repository.ErrWeakPassword),
		errors.Is(err, repository.ErrShortUsername),
		errors.Is(err, player.ErrNotConnected),
		errors.Is(err, player.ErrEmptyQueue),
		errors.Is(err, player.ErrNothingPlaying),
		errors.Is(err, player.ErrInvalidChannel),
		errors.Is(err, player.ErrNoChannel):
		return http.StatusBadRequest
	case errors.Is(err, player.ErrBotNotReady),
		errors.Is(err, download.ErrQueueFull):
		return http.StatusServiceUnavailable
	case errors.Is(err, player.ErrCommandTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads the request body into v. An empty body leaves v untouched.
func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	return json.NewDecoder(r.Body).Decode(v)
}

func (h *APIHandler) heartbeat() time.Duration {
	if h.cfg.HeartbeatInterval > 0 {
		return h.cfg.HeartbeatInterval
	}
	return 30 * time.Second
}

// HealthHandler 健康检查
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"discord": h.player.DiscordStatus(),
	})
}
