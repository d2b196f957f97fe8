package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/parkerpayne/bard/logger"
	"github.com/parkerpayne/bard/storage"
)

// ArtworkHandler 提供歌单封面, 来源为本地目录或 MinIO
func (h *APIHandler) ArtworkHandler(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["file"]

	object, contentType, err := h.artwork.Open(r.Context(), name)
	if err != nil {
		if errors.Is(err, storage.ErrArtworkNotFound) {
			http.Error(w, "File not found", http.StatusNotFound)
			return
		}
		logger.Error("读取封面失败", logger.String("file", name), logger.ErrorField(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	defer object.Close()

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=3600")

	if _, err := io.Copy(w, object); err != nil {
		logger.Error("Error serving artwork", logger.ErrorField(err))
	}
}
