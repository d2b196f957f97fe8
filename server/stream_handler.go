package server

import (
	"fmt"
	"net/http"

	"github.com/parkerpayne/bard/core/broadcast"
	"github.com/parkerpayne/bard/logger"
)

// streamSSE forwards the topic to the client as Server-Sent Events until the
// client goes away or the hub drops the subscriber.
func (h *APIHandler) streamSSE(w http.ResponseWriter, r *http.Request, topic string, initial func() ([]byte, error)) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "Streaming unsupported")
		return
	}

	// subscribe before the initial snapshot so no update falls in between
	sub := h.events.Subscribe(topic)
	defer h.events.Unsubscribe(sub)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	logger.Debug("[SSE] 客户端已连接", logger.String("topic", topic), logger.String("subscriber", sub.ID))
	defer logger.Debug("[SSE] 客户端已断开", logger.String("topic", topic), logger.String("subscriber", sub.ID))

	if initial != nil {
		msg, err := initial()
		if err != nil {
			logger.Error("[SSE] 生成初始状态失败", logger.ErrorField(err))
			return
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", msg); err != nil {
			return
		}
	}
	flusher.Flush()

	ctx := r.Context()
	for {
		msg, err := sub.Next(ctx, h.heartbeat())
		if err != nil {
			return
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", msg); err != nil {
			return
		}
		flusher.Flush()
	}
}

// DownloadStreamHandler SSE 下载进度
func (h *APIHandler) DownloadStreamHandler(w http.ResponseWriter, r *http.Request) {
	h.streamSSE(w, r, broadcast.TopicDownloads, nil)
}

// PlayerStreamHandler sends the current snapshot first, then every state
// change.
func (h *APIHandler) PlayerStreamHandler(w http.ResponseWriter, r *http.Request) {
	h.streamSSE(w, r, broadcast.TopicPlayer, func() ([]byte, error) {
		return broadcast.Envelope(broadcast.EventPlayerStateChange, h.player.Snapshot())
	})
}
