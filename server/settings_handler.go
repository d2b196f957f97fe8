package server

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/parkerpayne/bard/core/voicebot"
	"github.com/parkerpayne/bard/logger"
)

const botStartTimeout = 30 * time.Second

// GetSettingsHandler 读取设置, 文件不存在时返回默认值
func (h *APIHandler) GetSettingsHandler(w http.ResponseWriter, r *http.Request) {
	s, err := h.settings.Load()
	if err != nil {
		logger.Error("[Settings] 读取设置失败", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to load settings")
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// SaveSettingsHandler merges the posted document into the stored settings.
func (h *APIHandler) SaveSettingsHandler(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil || len(strings.TrimSpace(string(raw))) == 0 {
		writeError(w, http.StatusBadRequest, "No data provided")
		return
	}
	if _, err := h.settings.Merge(raw); err != nil {
		logger.Error("[Settings] 保存设置失败", logger.ErrorField(err))
		writeError(w, http.StatusBadRequest, "Failed to save settings")
		return
	}
	writeSuccess(w, "Settings saved successfully")
}

// TestDiscordHandler validates the credentials, stores them and restarts
// the bot with the new token.
func (h *APIHandler) TestDiscordHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BotToken  string `json:"botToken"`
		ChannelID string `json:"channelId"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Bot token and channel ID are required")
		return
	}
	token := strings.TrimSpace(req.BotToken)
	channelID := strings.TrimSpace(req.ChannelID)

	if token == "" {
		writeError(w, http.StatusBadRequest, "Bot token is required")
		return
	}
	if !voicebot.ValidChannelID(channelID) {
		writeError(w, http.StatusBadRequest, "Valid channel ID is required")
		return
	}
	if !voicebot.ValidToken(token) {
		writeError(w, http.StatusBadRequest, "Invalid bot token format")
		return
	}

	s, err := h.settings.Load()
	if err != nil {
		logger.Error("[Settings] 读取设置失败", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Connection test failed")
		return
	}
	s.Discord.BotToken = token
	s.Discord.ChannelID = channelID
	s.Discord.Connected = false
	if err := h.settings.Save(s); err != nil {
		logger.Error("[Settings] 保存设置失败", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Connection test failed")
		return
	}

	go h.restartBot(token)
	writeSuccess(w, "Discord credentials saved successfully")
}

func (h *APIHandler) restartBot(token string) {
	ctx, cancel := context.WithTimeout(context.Background(), botStartTimeout)
	defer cancel()

	if _, err := h.player.RestartBot(ctx, token); err != nil {
		logger.Error("[Discord] 机器人重启失败", logger.ErrorField(err))
		return
	}
	logger.Info("[Discord] 机器人已使用新凭据重启")
}
