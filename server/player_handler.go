package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/parkerpayne/bard/core/player"
	"github.com/parkerpayne/bard/logger"
)

// runPlayerOp answers {"success": true, "message": ...} or maps the
// controller error to a status code.
func runPlayerOp(w http.ResponseWriter, r *http.Request, op string, fn func(ctx context.Context) (string, error)) {
	msg, err := fn(r.Context())
	if err != nil {
		logger.Warn("[Player] 操作失败", logger.String("op", op), logger.ErrorField(err))
		writeErr(w, err)
		return
	}
	writeSuccess(w, msg)
}

// PlayHandler 随机播放歌单
func (h *APIHandler) PlayHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlaylistName string `json:"playlist_name"`
	}
	if err := decodeJSON(r, &req); err != nil || req.PlaylistName == "" {
		writeError(w, http.StatusBadRequest, "Playlist name is required")
		return
	}

	p, err := h.playlists.Get(req.PlaylistName)
	if err != nil {
		writeErr(w, err)
		return
	}
	if len(p.Songs) == 0 {
		writeError(w, http.StatusBadRequest, "Playlist is empty")
		return
	}

	runPlayerOp(w, r, "play", func(ctx context.Context) (string, error) {
		return h.player.PlayPlaylist(ctx, req.PlaylistName)
	})
}

func (h *APIHandler) PlayPauseHandler(w http.ResponseWriter, r *http.Request) {
	runPlayerOp(w, r, "playpause", h.player.PauseResume)
}

func (h *APIHandler) NextHandler(w http.ResponseWriter, r *http.Request) {
	runPlayerOp(w, r, "next", h.player.Next)
}

func (h *APIHandler) PreviousHandler(w http.ResponseWriter, r *http.Request) {
	runPlayerOp(w, r, "previous", h.player.Previous)
}

func (h *APIHandler) StopHandler(w http.ResponseWriter, r *http.Request) {
	runPlayerOp(w, r, "stop", h.player.StopPlayback)
}

// PlayerStatusHandler returns the latest published snapshot. It never goes
// through the owner loop.
func (h *APIHandler) PlayerStatusHandler(w http.ResponseWriter, r *http.Request) {
	state := h.player.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"success":          true,
		"is_playing":       state.IsPlaying,
		"is_paused":        state.IsPaused,
		"voice_connected":  state.DiscordStatus.VoiceConnected,
		"bot_ready":        state.DiscordStatus.BotReady,
		"current_song":     state.CurrentSong,
		"current_playlist": state.CurrentPlaylist,
		"queue_position":   state.QueuePosition,
		"queue_length":     state.QueueLength,
		"shuffled_queue":   state.ShuffledQueue,
		"elapsed_time":     state.ElapsedTime,
		"song_duration":    state.SongDuration,
	})
}

// JoinVoiceHandler joins the channel stored in settings.
func (h *APIHandler) JoinVoiceHandler(w http.ResponseWriter, r *http.Request) {
	s, err := h.settings.Load()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Discord settings not configured")
		return
	}
	channelID := strings.TrimSpace(s.Discord.ChannelID)
	if channelID == "" {
		writeError(w, http.StatusBadRequest, "Channel ID must be configured in settings")
		return
	}
	if !player.ValidChannelID(channelID) {
		writeError(w, http.StatusBadRequest, "Invalid channel ID format")
		return
	}

	runPlayerOp(w, r, "join", func(ctx context.Context) (string, error) {
		return h.player.JoinVoice(ctx, channelID)
	})
}

func (h *APIHandler) LeaveVoiceHandler(w http.ResponseWriter, r *http.Request) {
	runPlayerOp(w, r, "leave", h.player.LeaveVoice)
}

// DiscordStatusHandler 机器人状态及配置的目标频道
func (h *APIHandler) DiscordStatusHandler(w http.ResponseWriter, r *http.Request) {
	status := h.player.DiscordStatus()

	var target string
	if s, err := h.settings.Load(); err == nil {
		target = s.Discord.ChannelID
	} else {
		logger.Warn("[Discord] 读取设置失败", logger.ErrorField(err))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":            true,
		"bot_ready":          status.BotReady,
		"voice_connected":    status.VoiceConnected,
		"current_channel_id": status.CurrentChannelID,
		"target_channel_id":  target,
	})
}
