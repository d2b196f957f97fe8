package server

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/parkerpayne/bard/core/broadcast"
	"github.com/parkerpayne/bard/logger"
)

const (
	wsWriteWait = 10 * time.Second
	wsReadLimit = 512
)

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

var heartbeatEnvelope = []byte(`{"type":"heartbeat"}`)

// EventSocketHandler streams one topic (?topic=downloads|player) over a
// WebSocket. Inbound messages are ignored.
func (h *APIHandler) EventSocketHandler(w http.ResponseWriter, r *http.Request) {
	topic := r.URL.Query().Get("topic")
	if topic != broadcast.TopicDownloads && topic != broadcast.TopicPlayer {
		writeError(w, http.StatusBadRequest, "topic must be downloads or player")
		return
	}

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("WebSocket 升级失败", logger.ErrorField(err))
		return
	}

	// a ping goes out at least every heartbeat interval
	pingPeriod := h.heartbeat()
	pongWait := 2*pingPeriod + wsWriteWait

	sub := h.events.Subscribe(topic)
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		defer cancel()
		readPump(conn, pongWait)
	}()

	defer func() {
		cancel()
		h.events.Unsubscribe(sub)
		conn.Close()
	}()

	if topic == broadcast.TopicPlayer {
		msg, err := broadcast.Envelope(broadcast.EventPlayerStateChange, h.player.Snapshot())
		if err == nil && writeFrame(conn, msg) != nil {
			return
		}
	}

	lastPing := time.Now()
	for {
		msg, err := sub.Next(ctx, pingPeriod)
		if err != nil {
			return
		}
		if err := writeFrame(conn, msg); err != nil {
			return
		}
		if bytes.Equal(msg, heartbeatEnvelope) || time.Since(lastPing) >= pingPeriod {
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			lastPing = time.Now()
		}
	}
}

func writeFrame(conn *websocket.Conn, msg []byte) error {
	conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteMessage(websocket.TextMessage, msg)
}

// readPump drains the connection so pongs and close frames are processed.
func readPump(conn *websocket.Conn, pongWait time.Duration) {
	conn.SetReadLimit(wsReadLimit)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("websocket read error", logger.ErrorField(err))
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))
	}
}
