package model

// PlaylistRef is the playlist summary shown alongside the player.
type PlaylistRef struct {
	Name  string  `json:"name"`
	Image *string `json:"image"`
}

// DiscordStatus 机器人与语音连接状态
type DiscordStatus struct {
	BotReady         bool   `json:"bot_ready"`
	VoiceConnected   bool   `json:"voice_connected"`
	CurrentChannelID string `json:"current_channel_id,omitempty"`
}

// PlayerState 播放器状态快照
type PlayerState struct {
	IsPlaying       bool          `json:"is_playing"`
	IsPaused        bool          `json:"is_paused"`
	CurrentSong     *Song         `json:"current_song"`
	CurrentPlaylist *PlaylistRef  `json:"current_playlist"`
	QueuePosition   int           `json:"queue_position"`
	QueueLength     int           `json:"queue_length"`
	ShuffledQueue   []Song        `json:"shuffled_queue"`
	ElapsedTime     float64       `json:"elapsed_time"`
	SongDuration    float64       `json:"song_duration"`
	DiscordStatus   DiscordStatus `json:"discord_status"`
}
