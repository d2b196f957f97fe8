package player

import (
	"testing"
	"time"
)

func TestClockPauseResume(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewClock(func() time.Time { return now })

	if c.Elapsed() != 0 {
		t.Fatal("idle clock should read 0")
	}

	c.Start(200)
	now = now.Add(5 * time.Second)
	c.Pause()
	now = now.Add(3 * time.Second)
	if got := c.Elapsed(); got != 5 {
		t.Errorf("Elapsed while paused = %v, want 5", got)
	}
	c.Pause() // already paused
	c.Resume()
	now = now.Add(2 * time.Second)

	if got := c.Elapsed(); got != 7 {
		t.Errorf("Elapsed = %v, want 7", got)
	}
	if c.Duration() != 200 {
		t.Errorf("Duration = %v", c.Duration())
	}

	c.Reset()
	if c.Elapsed() != 0 {
		t.Error("reset clock should read 0")
	}
}

func TestStopFlags(t *testing.T) {
	f := NewStopFlags()
	f.Mark("a")
	f.Mark("")
	if f.Len() != 1 {
		t.Fatalf("Len = %d", f.Len())
	}
	if !f.Consume("a") || f.Consume("a") {
		t.Error("Consume should succeed exactly once")
	}
	f.Mark("b")
	f.Reset()
	if f.Consume("b") {
		t.Error("Reset should clear flags")
	}
}

func TestValidChannelID(t *testing.T) {
	for id, want := range map[string]bool{
		"12345678901234567":   true,
		"1234567890123456789": true,
		"1234567890123456":    false,
		"12345678901234567a":  false,
		"":                    false,
	} {
		if got := ValidChannelID(id); got != want {
			t.Errorf("ValidChannelID(%q) = %v", id, got)
		}
	}
}
