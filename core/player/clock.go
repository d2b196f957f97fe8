package player

import (
	"sync"
	"time"
)

// Clock 当前歌曲的已播放时长, 暂停期间冻结
type Clock struct {
	mu       sync.Mutex
	now      func() time.Time
	start    time.Time
	pausedAt time.Time
	duration float64
	running  bool
	paused   bool
}

func NewClock(now func() time.Time) *Clock {
	if now == nil {
		now = time.Now
	}
	return &Clock{now: now}
}

// Start begins timing a song of the given length in seconds.
func (c *Clock) Start(duration float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.start = c.now()
	c.duration = duration
	c.running = true
	c.paused = false
}

func (c *Clock) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running || c.paused {
		return
	}
	c.pausedAt = c.now()
	c.paused = true
}

// Resume shifts the start forward by the time spent paused.
func (c *Clock) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.paused {
		return
	}
	c.start = c.start.Add(c.now().Sub(c.pausedAt))
	c.paused = false
}

func (c *Clock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
	c.paused = false
	c.duration = 0
}

// Elapsed returns seconds played so far.
func (c *Clock) Elapsed() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return 0
	}
	if c.paused {
		return c.pausedAt.Sub(c.start).Seconds()
	}
	return c.now().Sub(c.start).Seconds()
}

func (c *Clock) Duration() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.duration
}
