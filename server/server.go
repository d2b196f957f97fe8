package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/parkerpayne/bard/logger"
	"github.com/parkerpayne/bard/metrics"
)

const shutdownTimeout = 5 * time.Second

// corsMiddleware 添加 CORS 头并直接应答预检请求
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400") // 24 hours

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// NewRouter 注册全部路由. /login, /healthz 和 /metrics 之外都需要登录
func NewRouter(h *APIHandler) *mux.Router {
	router := mux.NewRouter()
	router.Use(corsMiddleware)
	router.Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	// 公开端点
	router.HandleFunc("/login", h.LoginHandler).Methods(http.MethodPost)
	router.HandleFunc("/healthz", h.HealthHandler).Methods(http.MethodGet)
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	protected := router.NewRoute().Subrouter()
	protected.Use(h.AuthMiddleware)

	protected.HandleFunc("/logout", h.LogoutHandler).Methods(http.MethodPost, http.MethodGet)

	// 歌单
	protected.HandleFunc("/api/playlists", h.GetPlaylistsHandler).Methods(http.MethodGet)
	protected.HandleFunc("/api/playlists/{name}", h.GetPlaylistHandler).Methods(http.MethodGet)
	protected.HandleFunc("/playlists", h.CreatePlaylistHandler).Methods(http.MethodPost)
	protected.HandleFunc("/playlists/{name}", h.CreatePlaylistHandler).Methods(http.MethodPost)
	protected.HandleFunc("/playlists/{name}", h.UpdatePlaylistHandler).Methods(http.MethodPut)
	protected.HandleFunc("/playlists/{name}", h.DeletePlaylistHandler).Methods(http.MethodDelete)
	protected.HandleFunc("/api/playlists/{name}/songs", h.AddSongHandler).Methods(http.MethodPost)
	protected.HandleFunc("/api/playlists/{name}/songs/{songID}", h.RemoveSongHandler).Methods(http.MethodDelete)

	// 曲库与下载
	protected.HandleFunc("/api/library", h.GetLibraryHandler).Methods(http.MethodGet)
	protected.HandleFunc("/api/library", h.SubmitDownloadHandler).Methods(http.MethodPost)
	protected.HandleFunc("/api/library/{id}/rename", h.RenameSongHandler).Methods(http.MethodPost)
	protected.HandleFunc("/api/library/{id}/delete", h.DeleteSongHandler).Methods(http.MethodDelete)
	protected.HandleFunc("/api/downloads/status", h.DownloadStatusHandler).Methods(http.MethodGet)

	// 事件流
	protected.HandleFunc("/api/downloads/stream", h.DownloadStreamHandler).Methods(http.MethodGet)
	protected.HandleFunc("/api/player/stream", h.PlayerStreamHandler).Methods(http.MethodGet)
	protected.HandleFunc("/api/ws", h.EventSocketHandler).Methods(http.MethodGet)

	// 播放控制
	protected.HandleFunc("/player/play", h.PlayHandler).Methods(http.MethodPost)
	protected.HandleFunc("/player/playpause", h.PlayPauseHandler).Methods(http.MethodPost)
	protected.HandleFunc("/player/next", h.NextHandler).Methods(http.MethodPost)
	protected.HandleFunc("/player/previous", h.PreviousHandler).Methods(http.MethodPost)
	protected.HandleFunc("/player/stop", h.StopHandler).Methods(http.MethodPost)
	protected.HandleFunc("/api/player/status", h.PlayerStatusHandler).Methods(http.MethodGet)

	// Discord
	protected.HandleFunc("/api/discord/join-voice", h.JoinVoiceHandler).Methods(http.MethodPost)
	protected.HandleFunc("/api/discord/leave-voice", h.LeaveVoiceHandler).Methods(http.MethodPost)
	protected.HandleFunc("/api/discord/status", h.DiscordStatusHandler).Methods(http.MethodGet)

	// 设置
	protected.HandleFunc("/api/settings", h.GetSettingsHandler).Methods(http.MethodGet)
	protected.HandleFunc("/api/settings", h.SaveSettingsHandler).Methods(http.MethodPost)
	protected.HandleFunc("/api/settings/test-discord", h.TestDiscordHandler).Methods(http.MethodPost)
	protected.HandleFunc("/api/settings/change-password", h.ChangePasswordHandler).Methods(http.MethodPost)

	protected.HandleFunc("/static/img/{file}", h.ArtworkHandler).Methods(http.MethodGet)

	return router
}

// Run serves handler on port until ctx is cancelled, then shuts down
// gracefully. The write timeout stays 0 so event streams are not cut off.
func Run(ctx context.Context, port int, handler http.Handler) error {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      0,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP 服务启动", logger.Int("port", port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("Server stopped")
	return nil
}
