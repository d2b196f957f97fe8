package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/parkerpayne/bard/logger"
	"github.com/parkerpayne/bard/model"
	"github.com/parkerpayne/bard/repository"
	"github.com/parkerpayne/bard/storage"
)

const maxUploadSize = 10 << 20

// GetPlaylistsHandler 返回全部歌单和标签
func (h *APIHandler) GetPlaylistsHandler(w http.ResponseWriter, r *http.Request) {
	idx, err := h.playlists.List(r.Context())
	if err != nil {
		logger.Error("[Playlist] 读取歌单列表失败", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to load playlists")
		return
	}
	writeJSON(w, http.StatusOK, idx)
}

// GetPlaylistHandler 返回单个歌单
func (h *APIHandler) GetPlaylistHandler(w http.ResponseWriter, r *http.Request) {
	p, err := h.playlists.Get(mux.Vars(r)["name"])
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// parseTags reads the JSON encoded tags field. Missing means nil.
func parseTags(r *http.Request) ([]string, error) {
	raw := r.FormValue("tags")
	if raw == "" {
		return nil, nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		return nil, fmt.Errorf("invalid tags format")
	}
	return tags, nil
}

// saveArtwork stores the uploaded image field under key, if present.
func (h *APIHandler) saveArtwork(r *http.Request, key string) (*string, error) {
	file, header, err := r.FormFile("image")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()
	if header.Filename == "" {
		return nil, nil
	}

	name := storage.ArtworkName(key, header.Filename)
	ref, err := h.artwork.Save(r.Context(), name, "", file, header.Size)
	if err != nil {
		return nil, fmt.Errorf("save artwork: %w", err)
	}
	return &ref, nil
}

func parseForm(r *http.Request) error {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		return r.ParseMultipartForm(maxUploadSize)
	}
	return r.ParseForm()
}

// CreatePlaylistHandler creates a playlist from a multipart form with
// name, tags (JSON array) and an optional image.
func (h *APIHandler) CreatePlaylistHandler(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(r); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid form data")
		return
	}

	name := strings.TrimSpace(r.FormValue("name"))
	if name == "" {
		writeError(w, http.StatusBadRequest, "Playlist name is required")
		return
	}
	tags, err := parseTags(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	key := repository.Hash(name)
	if _, err := h.playlists.Get(key); err == nil {
		writeError(w, http.StatusConflict, "Playlist already exists")
		return
	}

	image, err := h.saveArtwork(r, key)
	if err != nil {
		logger.Error("[Playlist] 保存封面失败", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to save image")
		return
	}

	p, err := h.playlists.Create(r.Context(), name, tags, image)
	if err != nil {
		if image != nil {
			_ = h.artwork.Delete(r.Context(), *image)
		}
		writeErr(w, err)
		return
	}

	logger.Info("[Playlist] 歌单已创建", logger.String("name", name), logger.String("key", key))
	writeJSON(w, http.StatusCreated, map[string]any{
		"success":  true,
		"message":  "Playlist created successfully",
		"playlist": p,
	})
}

// UpdatePlaylistHandler 修改歌单名称/标签/封面
func (h *APIHandler) UpdatePlaylistHandler(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["name"]
	if err := parseForm(r); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid form data")
		return
	}

	current, err := h.playlists.Get(key)
	if err != nil {
		writeErr(w, err)
		return
	}

	name := strings.TrimSpace(r.FormValue("name"))
	tags, err := parseTags(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	newKey := key
	if name != "" && name != current.Name {
		newKey = repository.Hash(name)
	}
	image, err := h.saveArtwork(r, newKey)
	if err != nil {
		logger.Error("[Playlist] 保存封面失败", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to save image")
		return
	}

	p, err := h.playlists.Update(r.Context(), key, name, tags, image)
	if err != nil {
		writeErr(w, err)
		return
	}
	if old := current.ImageRef(); image != nil && old != "" && old != *image {
		if err := h.artwork.Delete(r.Context(), old); err != nil {
			logger.Warn("[Playlist] 删除旧封面失败", logger.String("ref", old), logger.ErrorField(err))
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"message":  "Playlist updated successfully",
		"playlist": p,
	})
}

// DeletePlaylistHandler 删除歌单及其封面
func (h *APIHandler) DeletePlaylistHandler(w http.ResponseWriter, r *http.Request) {
	p, err := h.playlists.Delete(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		writeErr(w, err)
		return
	}
	if ref := p.ImageRef(); ref != "" {
		if err := h.artwork.Delete(r.Context(), ref); err != nil {
			logger.Warn("[Playlist] 删除封面失败", logger.String("ref", ref), logger.ErrorField(err))
		}
	}
	writeSuccess(w, "Playlist deleted successfully")
}

// AddSongHandler adds a library song to the playlist by library id.
func (h *APIHandler) AddSongHandler(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["name"]

	var req struct {
		SongID string `json:"song_id"`
	}
	if err := decodeJSON(r, &req); err != nil || req.SongID == "" {
		writeError(w, http.StatusBadRequest, "Song ID is required")
		return
	}

	if _, err := h.playlists.Get(key); err != nil {
		writeErr(w, err)
		return
	}
	lib, err := h.library.Song(r.Context(), req.SongID)
	if err != nil {
		if errors.Is(err, repository.ErrSongNotFound) {
			writeError(w, http.StatusNotFound, "Song not found in library")
			return
		}
		writeErr(w, err)
		return
	}

	song := model.Song{
		ID:            uuid.NewString(),
		LibrarySongID: lib.ID,
		Title:         lib.Title,
		Filename:      lib.Filename,
		Duration:      lib.Duration,
		AddedAt:       time.Now().Format(time.RFC3339),
	}
	if err := h.playlists.AddSong(r.Context(), key, song); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Song added to playlist",
		"song":    song,
	})
}

// RemoveSongHandler 按条目 id 移除歌曲
func (h *APIHandler) RemoveSongHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := h.playlists.RemoveSong(r.Context(), vars["name"], vars["songID"]); err != nil {
		writeErr(w, err)
		return
	}
	writeSuccess(w, "Song removed from playlist")
}
