package broadcast

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/parkerpayne/bard/logger"
	"github.com/parkerpayne/bard/metrics"
)

// 事件主题
const (
	TopicDownloads = "downloads"
	TopicPlayer    = "player"
)

// 事件类型
const (
	EventDownloadUpdate      = "download_update"
	EventPlayerStateChange   = "player_state_change"
	EventDiscordStatusChange = "discord_status_change"
	EventHeartbeat           = "heartbeat"
)

var heartbeatPayload = []byte(`{"type":"heartbeat"}`)

// Publisher is the write side of the hub used by the pipeline and the player.
type Publisher interface {
	Publish(topic string, msg []byte) int
	PublishEvent(topic, eventType string, payload any) error
}

// Hub 按主题分发事件, 每个订阅者一个有界队列
type Hub struct {
	mu            sync.RWMutex
	topics        map[string]map[*Subscriber]struct{}
	buffers       map[string]int
	defaultBuffer int
}

// NewHub 创建 Hub, defaultBuffer 为未单独配置主题的队列长度
func NewHub(defaultBuffer int) *Hub {
	if defaultBuffer <= 0 {
		defaultBuffer = 50
	}
	return &Hub{
		topics:        make(map[string]map[*Subscriber]struct{}),
		buffers:       make(map[string]int),
		defaultBuffer: defaultBuffer,
	}
}

// SetBuffer overrides the queue length for new subscribers of topic.
func (h *Hub) SetBuffer(topic string, size int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.buffers[topic] = size
}

// Subscribe 注册一个新的订阅者
func (h *Hub) Subscribe(topic string) *Subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()

	size, ok := h.buffers[topic]
	if !ok || size <= 0 {
		size = h.defaultBuffer
	}
	sub := newSubscriber(topic, size)

	if h.topics[topic] == nil {
		h.topics[topic] = make(map[*Subscriber]struct{})
	}
	h.topics[topic][sub] = struct{}{}
	metrics.HubSubscribers.WithLabelValues(topic).Set(float64(len(h.topics[topic])))

	logger.Debug("subscriber registered",
		logger.String("topic", topic),
		logger.String("subscriber", sub.ID))
	return sub
}

// Unsubscribe 注销订阅者, 可重复调用
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(sub)
}

// removeLocked 移除订阅者（需要持有锁）
func (h *Hub) removeLocked(sub *Subscriber) {
	subs, ok := h.topics[sub.Topic]
	if !ok {
		sub.Close()
		return
	}
	if _, ok := subs[sub]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(h.topics, sub.Topic)
		}
		metrics.HubSubscribers.WithLabelValues(sub.Topic).Set(float64(len(subs)))
	}
	sub.Close()
}

// Publish delivers msg to every subscriber of topic without blocking.
// Subscribers whose queue is full are removed. Returns the number of
// subscribers that accepted the message.
func (h *Hub) Publish(topic string, msg []byte) int {
	h.mu.RLock()
	subs := make([]*Subscriber, 0, len(h.topics[topic]))
	for sub := range h.topics[topic] {
		subs = append(subs, sub)
	}
	h.mu.RUnlock()

	delivered := 0
	var dead []*Subscriber
	for _, sub := range subs {
		if sub.isClosed() {
			dead = append(dead, sub)
			continue
		}
		select {
		case sub.send <- msg:
			delivered++
		default:
			dead = append(dead, sub)
			metrics.HubDropped.WithLabelValues(topic).Inc()
			logger.Warn("subscriber queue full, dropping",
				logger.String("topic", topic),
				logger.String("subscriber", sub.ID))
		}
	}

	if len(dead) > 0 {
		h.mu.Lock()
		for _, sub := range dead {
			h.removeLocked(sub)
		}
		h.mu.Unlock()
	}
	return delivered
}

// PublishEvent wraps payload in a {type, ...payload} envelope and publishes it.
func (h *Hub) PublishEvent(topic, eventType string, payload any) error {
	msg, err := Envelope(eventType, payload)
	if err != nil {
		return err
	}
	h.Publish(topic, msg)
	return nil
}

// Sweep removes subscribers that were closed without being unsubscribed.
func (h *Hub) Sweep() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	removed := 0
	for _, subs := range h.topics {
		for sub := range subs {
			if sub.isClosed() {
				h.removeLocked(sub)
				removed++
			}
		}
	}
	return removed
}

// Count 返回主题当前订阅者数量
func (h *Hub) Count(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

// Close 关闭所有订阅者
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, subs := range h.topics {
		for sub := range subs {
			h.removeLocked(sub)
		}
	}
}

// Envelope encodes payload as a JSON object and prepends the type field.
// A nil payload yields {"type": eventType}.
func Envelope(eventType string, payload any) ([]byte, error) {
	head, err := json.Marshal(eventType)
	if err != nil {
		return nil, err
	}
	if payload == nil {
		return []byte(`{"type":` + string(head) + `}`), nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s event: %w", eventType, err)
	}
	body = bytes.TrimSpace(body)
	if len(body) < 2 || body[0] != '{' {
		return nil, fmt.Errorf("encode %s event: payload is not an object", eventType)
	}

	var buf bytes.Buffer
	buf.Grow(len(body) + len(head) + 10)
	buf.WriteString(`{"type":`)
	buf.Write(head)
	if inner := bytes.TrimSpace(body[1 : len(body)-1]); len(inner) > 0 {
		buf.WriteByte(',')
		buf.Write(inner)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
