package player

import "sync"

// StopFlags holds the playback identities that were stopped on purpose.
// A completion for a flagged identity must not auto-advance.
type StopFlags struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

func NewStopFlags() *StopFlags {
	return &StopFlags{ids: make(map[string]struct{})}
}

func (f *StopFlags) Mark(id string) {
	if id == "" {
		return
	}
	f.mu.Lock()
	f.ids[id] = struct{}{}
	f.mu.Unlock()
}

// Consume reports whether id was flagged and clears the flag.
func (f *StopFlags) Consume(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.ids[id]; ok {
		delete(f.ids, id)
		return true
	}
	return false
}

func (f *StopFlags) Reset() {
	f.mu.Lock()
	f.ids = make(map[string]struct{})
	f.mu.Unlock()
}

func (f *StopFlags) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ids)
}
