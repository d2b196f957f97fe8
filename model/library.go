package model

import "time"

// Song is one entry of a playlist. ID is unique per entry; LibrarySongID
// points back at the library file.
type Song struct {
	ID            string  `json:"id"`
	LibrarySongID string  `json:"library_song_id,omitempty"`
	Title         string  `json:"title"`
	Filename      string  `json:"filename"`
	Duration      float64 `json:"duration"`
	AddedAt       string  `json:"added_at"`
}

// Playlist 歌单, 以 serialized_name 为文件名存储
type Playlist struct {
	Name           string   `json:"name"`
	Tags           []string `json:"tags"`
	Image          *string  `json:"image"`
	Songs          []Song   `json:"songs"`
	CreatedAt      string   `json:"created_at"`
	SerializedName string   `json:"serialized_name,omitempty"`
	SongCount      int      `json:"song_count"`
}

// ImageRef returns the artwork reference or "" when unset.
func (p *Playlist) ImageRef() string {
	if p == nil || p.Image == nil {
		return ""
	}
	return *p.Image
}

// PlaylistIndex is the listing response for all playlists.
type PlaylistIndex struct {
	Playlists []Playlist `json:"playlists"`
	Tags      []string   `json:"tags"`
}

// LibrarySong 曲库中的音频文件
type LibrarySong struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Filename  string    `json:"filename"`
	Duration  float64   `json:"duration"`
	Size      int64     `json:"size"`
	AddedDate time.Time `json:"added_date"`
}
