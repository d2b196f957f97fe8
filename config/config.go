package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config stores the application configuration.
type Config struct {
	Port int

	// 文件存储
	PlaylistDir  string
	LibraryDir   string
	TempDir      string
	ArtworkDir   string
	SettingsFile string
	AuthFile     string

	// 外部工具
	FFmpegPath      string
	FFprobePath     string
	YtDlpPath       string
	AudioCodec      string // e.g., "libmp3lame"
	AudioBitrate    string // e.g., "192k"
	AudioSampleRate string // e.g., "44100"

	// 下载流水线
	StageTimeout      time.Duration
	DownloadWorkers   int
	DownloadQueueSize int
	JobRetention      time.Duration
	SweepInterval     time.Duration

	// 播放控制
	CommandTimeout time.Duration
	SettleDelay    time.Duration

	// 事件推送
	HeartbeatInterval        time.Duration
	DownloadSubscriberBuffer int
	PlayerSubscriberBuffer   int

	// 认证
	DefaultUsername string
	DefaultPassword string
	JWTSecret       string
	TokenTTL        time.Duration

	CacheTTL time.Duration

	// Redis配置
	RedisEnabled  bool
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// MySQL 任务历史 (可选)
	DBEnabled  bool
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// MinIO 封面存储 (可选)
	MinioEnabled   bool
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	LogLevel string
	LogFile  string
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

// getEnvDuration accepts Go duration strings ("300s", "1m") or plain seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return fallback
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// godotenv.Load() will not override existing env vars.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on existing environment variables and defaults.")
	}
	return FromEnv()
}

// FromEnv builds a Config from the current environment without touching .env files.
func FromEnv() *Config {
	return &Config{
		Port: getEnvInt("PORT", 9321),

		PlaylistDir:  getEnv("PLAYLIST_DIR", "playlists"),
		LibraryDir:   getEnv("LIBRARY_DIR", "library"),
		TempDir:      getEnv("TEMP_DIR", "temp_downloads"),
		ArtworkDir:   getEnv("ARTWORK_DIR", "static/img"),
		SettingsFile: getEnv("SETTINGS_FILE", "settings.json"),
		AuthFile:     getEnv("AUTH_FILE", "auth.json"),

		FFmpegPath:      getEnv("FFMPEG_PATH", "ffmpeg"),
		FFprobePath:     getEnv("FFPROBE_PATH", "ffprobe"),
		YtDlpPath:       getEnv("YTDLP_PATH", "yt-dlp"),
		AudioCodec:      getEnv("AUDIO_CODEC", "libmp3lame"),
		AudioBitrate:    getEnv("AUDIO_BITRATE", "192k"),
		AudioSampleRate: getEnv("AUDIO_SAMPLE_RATE", "44100"),

		StageTimeout:      getEnvDuration("STAGE_TIMEOUT", 300*time.Second),
		DownloadWorkers:   getEnvInt("DOWNLOAD_WORKERS", 3),
		DownloadQueueSize: getEnvInt("DOWNLOAD_QUEUE_SIZE", 256),
		JobRetention:      getEnvDuration("JOB_RETENTION", 300*time.Second),
		SweepInterval:     getEnvDuration("SWEEP_INTERVAL", 60*time.Second),

		CommandTimeout: getEnvDuration("COMMAND_TIMEOUT", 10*time.Second),
		SettleDelay:    getEnvDuration("SETTLE_DELAY", 500*time.Millisecond),

		HeartbeatInterval:        getEnvDuration("HEARTBEAT_INTERVAL", 30*time.Second),
		DownloadSubscriberBuffer: getEnvInt("DOWNLOAD_SUBSCRIBER_BUFFER", 100),
		PlayerSubscriberBuffer:   getEnvInt("PLAYER_SUBSCRIBER_BUFFER", 50),

		DefaultUsername: getEnv("DEFAULT_USERNAME", "admin"),
		DefaultPassword: getEnv("DEFAULT_PASSWORD", "admin"),
		JWTSecret:       getEnv("JWT_SECRET", "change-this-secret-in-production"),
		TokenTTL:        getEnvDuration("TOKEN_TTL", 24*time.Hour),

		CacheTTL: getEnvDuration("CACHE_TTL", 300*time.Second),

		RedisEnabled:  getEnvBool("REDIS_ENABLED", false),
		RedisHost:     getEnv("REDIS_HOST", "127.0.0.1"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		DBEnabled:  getEnvBool("DB_ENABLED", false),
		DBHost:     getEnv("DB_HOST", "127.0.0.1"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "root"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     getEnv("DB_NAME", "bard"),

		MinioEnabled:   getEnvBool("MINIO_ENABLED", false),
		MinioEndpoint:  getEnv("MINIO_ENDPOINT", "127.0.0.1:9000"),
		MinioAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getEnv("MINIO_SECRET_KEY", ""),
		MinioBucket:    getEnv("MINIO_BUCKET", "bard"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", ""),
	}
}

// RedisAddr returns host:port for the redis client.
func (c *Config) RedisAddr() string {
	return c.RedisHost + ":" + c.RedisPort
}
