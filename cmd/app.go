package cmd

import (
	"fmt"

	"github.com/parkerpayne/bard/cache"
	"github.com/parkerpayne/bard/config"
	"github.com/parkerpayne/bard/core/audio"
	"github.com/parkerpayne/bard/core/broadcast"
	"github.com/parkerpayne/bard/core/download"
	"github.com/parkerpayne/bard/core/fetch"
	"github.com/parkerpayne/bard/db"
	"github.com/parkerpayne/bard/logger"
	"github.com/parkerpayne/bard/model"
	"github.com/parkerpayne/bard/repository"
	"github.com/parkerpayne/bard/storage"
)

// app holds the components shared by the server and the fetch command.
type app struct {
	cfg       *config.Config
	hub       *broadcast.Hub
	ffmpeg    *audio.FFmpegProcessor
	playlists repository.PlaylistRepository
	library   repository.LibraryRepository
	settings  repository.SettingsRepository
	artwork   storage.ArtworkStore
	downloads *download.Manager
}

func initLogger(cfg *config.Config) {
	logger.InitLogger(logger.Config{
		Level:      logger.LogLevel(cfg.LogLevel),
		OutputPath: cfg.LogFile,
		MaxSize:    100,
		MaxBackups: 5,
		MaxAge:     30,
		Compress:   true,
	})
}

// listingCache 启用 Redis 时使用 Redis, 连接失败退回内存缓存
func listingCache(cfg *config.Config) cache.ListingCache {
	if cfg.RedisEnabled {
		if err := cache.ConnectRedis(cfg); err != nil {
			logger.Warn("Redis 不可用, 使用内存缓存", logger.ErrorField(err))
		} else {
			logger.Info("Redis 列表缓存已启用", logger.String("addr", cfg.RedisAddr()))
			return cache.NewListingCache(cache.RedisClient, cfg.CacheTTL)
		}
	}
	return cache.NewMemoryListingCache(cfg.CacheTTL)
}

// artworkStore 启用 MinIO 时使用对象存储, 否则写本地目录
func artworkStore(cfg *config.Config) (storage.ArtworkStore, error) {
	if cfg.MinioEnabled {
		store, err := storage.NewMinioArtworkStore(cfg)
		if err == nil {
			logger.Info("MinIO 封面存储已启用", logger.String("bucket", cfg.MinioBucket))
			return store, nil
		}
		logger.Warn("MinIO 不可用, 使用本地封面目录", logger.ErrorField(err))
	}
	return storage.NewLocalArtworkStore(cfg.ArtworkDir)
}

// jobHistory connects MySQL when enabled. A nil result disables history.
func jobHistory(cfg *config.Config) download.History {
	if !cfg.DBEnabled {
		return nil
	}
	if err := db.ConnectGormDB(cfg); err != nil {
		logger.Warn("数据库不可用, 不记录任务历史", logger.ErrorField(err))
		return nil
	}
	if err := db.AutoMigrateModels(&model.JobRecord{}); err != nil {
		logger.Warn("任务历史表迁移失败", logger.ErrorField(err))
		return nil
	}
	return repository.NewJobHistoryRepository(db.GormDB)
}

func newApp(cfg *config.Config) (*app, error) {
	hub := broadcast.NewHub(cfg.PlayerSubscriberBuffer)
	hub.SetBuffer(broadcast.TopicDownloads, cfg.DownloadSubscriberBuffer)
	hub.SetBuffer(broadcast.TopicPlayer, cfg.PlayerSubscriberBuffer)

	ffmpeg := audio.NewFFmpegProcessor(cfg)
	listing := listingCache(cfg)

	playlists, err := repository.NewPlaylistRepository(cfg.PlaylistDir, listing)
	if err != nil {
		return nil, err
	}
	library, err := repository.NewLibraryRepository(cfg.LibraryDir, listing, ffmpeg)
	if err != nil {
		return nil, err
	}
	artwork, err := artworkStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("artwork store: %w", err)
	}

	deps := download.Deps{
		Fetcher:    fetch.NewYtDlp(cfg.YtDlpPath),
		Transcoder: ffmpeg,
		Library:    library,
		Playlists:  playlists,
		Hub:        hub,
	}
	if h := jobHistory(cfg); h != nil {
		deps.History = h
	}

	return &app{
		cfg:       cfg,
		hub:       hub,
		ffmpeg:    ffmpeg,
		playlists: playlists,
		library:   library,
		settings:  repository.NewSettingsRepository(cfg.SettingsFile),
		artwork:   artwork,
		downloads: download.NewManager(download.OptionsFromConfig(cfg), deps),
	}, nil
}

// close releases the optional backends.
func (a *app) close() {
	a.hub.Close()
	if err := db.CloseGormDB(); err != nil {
		logger.Warn("关闭数据库连接失败", logger.ErrorField(err))
	}
	if err := cache.CloseRedis(); err != nil {
		logger.Warn("关闭Redis连接失败", logger.ErrorField(err))
	}
}
