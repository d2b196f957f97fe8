package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestPublishDropsFullSubscriber(t *testing.T) {
	h := NewHub(2)
	slow := h.Subscribe(TopicDownloads)
	fast := h.Subscribe(TopicDownloads)

	// fill the slow subscriber to capacity
	h.Publish(TopicDownloads, []byte(`{"n":1}`))
	h.Publish(TopicDownloads, []byte(`{"n":2}`))
	<-fast.send
	<-fast.send

	if got := h.Count(TopicDownloads); got != 2 {
		t.Fatalf("Count = %d before overflow, want 2", got)
	}

	delivered := h.Publish(TopicDownloads, []byte(`{"n":3}`))
	if delivered != 1 {
		t.Errorf("delivered = %d, want 1", delivered)
	}
	if got := h.Count(TopicDownloads); got != 1 {
		t.Errorf("Count = %d after overflow, want 1", got)
	}
	select {
	case <-slow.Done():
	default:
		t.Error("slow subscriber should be closed")
	}

	msg, err := fast.Next(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("fast.Next: %v", err)
	}
	if string(msg) != `{"n":3}` {
		t.Errorf("fast got %s", msg)
	}
}

func TestTopicsAreIsolated(t *testing.T) {
	h := NewHub(4)
	d := h.Subscribe(TopicDownloads)
	p := h.Subscribe(TopicPlayer)

	h.Publish(TopicPlayer, []byte(`{}`))

	if len(d.send) != 0 {
		t.Error("downloads subscriber received a player event")
	}
	if len(p.send) != 1 {
		t.Error("player subscriber missed its event")
	}
}

func TestNextHeartbeatAfterIdle(t *testing.T) {
	h := NewHub(1)
	sub := h.Subscribe(TopicPlayer)

	msg, err := sub.Next(context.Background(), 20*time.Millisecond)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if string(msg) != `{"type":"heartbeat"}` {
		t.Errorf("got %s, want heartbeat", msg)
	}
}

func TestNextAfterUnsubscribe(t *testing.T) {
	h := NewHub(1)
	sub := h.Subscribe(TopicPlayer)
	h.Unsubscribe(sub)
	h.Unsubscribe(sub)

	if _, err := sub.Next(context.Background(), time.Second); !errors.Is(err, ErrClosed) {
		t.Errorf("err = %v, want ErrClosed", err)
	}
	if h.Count(TopicPlayer) != 0 {
		t.Error("subscriber still counted")
	}
}

func TestSweepRemovesClosed(t *testing.T) {
	h := NewHub(1)
	a := h.Subscribe(TopicDownloads)
	h.Subscribe(TopicDownloads)
	a.Close()

	if n := h.Sweep(); n != 1 {
		t.Errorf("Sweep removed %d, want 1", n)
	}
	if h.Count(TopicDownloads) != 1 {
		t.Errorf("Count = %d, want 1", h.Count(TopicDownloads))
	}
}

func TestSetBuffer(t *testing.T) {
	h := NewHub(1)
	h.SetBuffer(TopicDownloads, 3)
	sub := h.Subscribe(TopicDownloads)
	if cap(sub.send) != 3 {
		t.Errorf("cap = %d, want 3", cap(sub.send))
	}
}

func TestEnvelope(t *testing.T) {
	type payload struct {
		ID       string `json:"id"`
		Progress int    `json:"progress"`
	}
	msg, err := Envelope(EventDownloadUpdate, payload{ID: "j1", Progress: 40})
	if err != nil {
		t.Fatalf("Envelope: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(msg, &got); err != nil {
		t.Fatalf("invalid json %s: %v", msg, err)
	}
	if got["type"] != EventDownloadUpdate || got["id"] != "j1" || got["progress"] != float64(40) {
		t.Errorf("unexpected envelope %v", got)
	}

	empty, err := Envelope(EventHeartbeat, struct{}{})
	if err != nil || string(empty) != `{"type":"heartbeat"}` {
		t.Errorf("empty payload envelope = %s, %v", empty, err)
	}

	if _, err := Envelope("x", []int{1}); err == nil {
		t.Error("non-object payload should fail")
	}
}
