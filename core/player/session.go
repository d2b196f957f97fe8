package player

import "github.com/parkerpayne/bard/model"

// session is the playback state. Only the owner loop reads or writes it;
// everyone else sees the published snapshot.
type session struct {
	playlist *model.PlaylistRef
	queue    []model.Song
	index    int
	current  *model.Song
	playing  bool
	paused   bool
	identity string
}

// reset mirrors the state after a disconnect.
func (s *session) reset() {
	*s = session{paused: true}
}

// wrap moves index one step in direction (+1 or -1) around a queue of n.
func wrap(index, direction, n int) int {
	return ((index+direction)%n + n) % n
}

func (s *session) state() model.PlayerState {
	st := model.PlayerState{
		IsPlaying:     s.playing,
		IsPaused:      s.paused,
		QueuePosition: s.index,
		QueueLength:   len(s.queue),
		ShuffledQueue: append([]model.Song(nil), s.queue...),
	}
	if st.ShuffledQueue == nil {
		st.ShuffledQueue = []model.Song{}
	}
	if s.current != nil {
		song := *s.current
		st.CurrentSong = &song
	}
	if s.playlist != nil {
		ref := *s.playlist
		st.CurrentPlaylist = &ref
	}
	return st
}
