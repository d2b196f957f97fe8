package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/parkerpayne/bard/core/fetch"
	"github.com/parkerpayne/bard/logger"
	"github.com/parkerpayne/bard/repository"
)

// 已结束任务在状态接口中保留的时间
const recentJobWindow = 30 * time.Second

// GetLibraryHandler 列出曲库
func (h *APIHandler) GetLibraryHandler(w http.ResponseWriter, r *http.Request) {
	songs, err := h.library.List(r.Context())
	if err != nil {
		logger.Error("[Library] 读取曲库失败", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to load library")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"songs": songs})
}

// SubmitDownloadHandler validates the URL and the target playlist, then
// queues a download job.
func (h *APIHandler) SubmitDownloadHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL            string `json:"url"`
		TargetPlaylist string `json:"target_playlist"`
	}
	if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.URL) == "" {
		writeError(w, http.StatusBadRequest, "URL is required")
		return
	}
	url := strings.TrimSpace(req.URL)

	if !fetch.ValidURL(url) {
		writeError(w, http.StatusBadRequest, "Invalid YouTube URL")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if err := h.ffmpeg.Available(ctx); err != nil {
		logger.Error("[Library] ffmpeg 不可用", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "FFmpeg is not installed or not available")
		return
	}

	if req.TargetPlaylist != "" {
		if _, err := h.playlists.Get(req.TargetPlaylist); err != nil {
			writeErr(w, err)
			return
		}
	}

	id, err := h.downloads.Submit(url, req.TargetPlaylist)
	if err != nil {
		logger.Warn("[Library] 提交下载失败", logger.String("url", url), logger.ErrorField(err))
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"download_id": id,
		"message":     "Download started successfully",
	})
}

// DownloadStatusHandler returns active jobs and jobs that finished within
// the last 30 seconds.
func (h *APIHandler) DownloadStatusHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"downloads": h.downloads.Recent(recentJobWindow)})
}

// RenameSongHandler 重命名曲库歌曲
func (h *APIHandler) RenameSongHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req struct {
		Title string `json:"title"`
	}
	if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.Title) == "" {
		writeError(w, http.StatusBadRequest, "Title is required")
		return
	}

	name, err := h.library.Rename(r.Context(), id, req.Title)
	if err != nil {
		if errors.Is(err, repository.ErrSongNotFound) {
			writeError(w, http.StatusNotFound, "Song not found")
			return
		}
		logger.Error("[Library] 重命名失败", logger.String("id", id), logger.ErrorField(err))
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"message":      "Song renamed successfully",
		"new_filename": name,
		"new_id":       repository.Hash(name),
	})
}

// DeleteSongHandler removes the file and every playlist entry pointing at it.
func (h *APIHandler) DeleteSongHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	name, err := h.library.Delete(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrSongNotFound) {
			writeError(w, http.StatusNotFound, "Song not found")
			return
		}
		logger.Error("[Library] 删除失败", logger.String("id", id), logger.ErrorField(err))
		writeErr(w, err)
		return
	}

	changed, err := h.playlists.RemoveLibrarySong(r.Context(), name, id)
	if err != nil {
		logger.Warn("[Library] 清理歌单引用失败", logger.String("file", name), logger.ErrorField(err))
	}
	if changed == nil {
		changed = []string{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":          true,
		"message":          "Song deleted successfully",
		"removed_from":     changed,
		"deleted_filename": name,
	})
}
