package model

// DiscordSettings 机器人配置
type DiscordSettings struct {
	BotToken  string `json:"botToken"`
	ChannelID string `json:"channelId"`
	Connected bool   `json:"connected"`
}

// GeneralSettings 通用配置
type GeneralSettings struct {
	AutoPlay          bool `json:"autoPlay"`
	ShowNotifications bool `json:"showNotifications"`
	DefaultVolume     int  `json:"defaultVolume"`
}

// Settings mirrors settings.json.
type Settings struct {
	Discord DiscordSettings `json:"discord"`
	General GeneralSettings `json:"general"`
}

// DefaultSettings returns the settings used when no file exists yet.
func DefaultSettings() Settings {
	return Settings{
		General: GeneralSettings{
			AutoPlay:          true,
			ShowNotifications: true,
			DefaultVolume:     50,
		},
	}
}

// Credentials mirrors auth.json. Password holds a bcrypt hash.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}
