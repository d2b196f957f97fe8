package broadcast

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrClosed is returned by Next once the subscriber has been removed.
var ErrClosed = errors.New("subscriber closed")

// Subscriber 订阅者: 有界发送队列 + 关闭状态
type Subscriber struct {
	ID    string
	Topic string

	send   chan []byte
	closed chan struct{}
	once   sync.Once
}

func newSubscriber(topic string, size int) *Subscriber {
	return &Subscriber{
		ID:     uuid.NewString(),
		Topic:  topic,
		send:   make(chan []byte, size),
		closed: make(chan struct{}),
	}
}

// Close marks the subscriber dead. The send queue is never closed so a
// concurrent publisher cannot panic.
func (s *Subscriber) Close() {
	s.once.Do(func() { close(s.closed) })
}

// Done is closed when the subscriber has been removed.
func (s *Subscriber) Done() <-chan struct{} {
	return s.closed
}

func (s *Subscriber) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

// Next blocks for the next message. After idle without traffic it returns
// a heartbeat envelope instead.
func (s *Subscriber) Next(ctx context.Context, idle time.Duration) ([]byte, error) {
	timer := time.NewTimer(idle)
	defer timer.Stop()

	select {
	case msg := <-s.send:
		return msg, nil
	case <-s.closed:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return heartbeatPayload, nil
	}
}
