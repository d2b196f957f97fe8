package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/parkerpayne/bard/config"
	"github.com/parkerpayne/bard/core/auth"
	"github.com/parkerpayne/bard/core/player"
	"github.com/parkerpayne/bard/core/voicebot"
	"github.com/parkerpayne/bard/logger"
	"github.com/parkerpayne/bard/repository"
	"github.com/parkerpayne/bard/server"
)

const libraryDebounce = 500 * time.Millisecond

var serverCmd = &cobra.Command{
	Use:     "server",
	Aliases: []string{"serve"},
	Short:   "启动 bard 服务器",
	Long:    `启动 HTTP 服务、下载工作池、播放控制器和 Discord 机器人`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}

func runServer() error {
	cfg := config.Load()
	initLogger(cfg)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	credentials, err := repository.NewCredentialsRepository(cfg.AuthFile, cfg.DefaultUsername, cfg.DefaultPassword)
	if err != nil {
		return err
	}

	bot := voicebot.NewClient(a.ffmpeg)
	ctrl := player.NewController(player.OptionsFromConfig(cfg), player.Deps{
		Voice:     bot,
		Bot:       bot,
		Playlists: a.playlists,
		Settings:  a.settings,
		Library:   a.library,
		Hub:       a.hub,
	})
	bot.SetHandlers(voicebot.Handlers{
		OnStatusChange: ctrl.NotifyStatusChange,
		OnDisconnect:   func() { ctrl.HandleDisconnect(ctx) },
	})

	go ctrl.Run(ctx)
	a.downloads.Start(ctx)

	go func() {
		if err := repository.WatchLibrary(ctx, cfg.LibraryDir, libraryDebounce, func() {
			a.library.Invalidate(ctx)
		}); err != nil {
			logger.Warn("曲库目录监听失败", logger.ErrorField(err))
		}
	}()

	autostartBot(ctx, a.settings, bot)

	h := server.NewAPIHandler(server.Deps{
		Config:      cfg,
		Tokens:      auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL),
		Playlists:   a.playlists,
		Library:     a.library,
		Settings:    a.settings,
		Credentials: credentials,
		Artwork:     a.artwork,
		Downloads:   a.downloads,
		Player:      ctrl,
		FFmpeg:      a.ffmpeg,
		Events:      a.hub,
	})

	runErr := server.Run(ctx, cfg.Port, server.NewRouter(h))
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	bot.Shutdown(shutdownCtx)
	a.downloads.Wait()

	return runErr
}

// autostartBot starts the bot in the background when a plausible token is saved.
func autostartBot(ctx context.Context, settings repository.SettingsRepository, bot *voicebot.Client) {
	s, err := settings.Load()
	if err != nil {
		logger.Warn("读取设置失败, 跳过机器人自启动", logger.ErrorField(err))
		return
	}
	if !voicebot.ValidToken(s.Discord.BotToken) {
		logger.Info("未配置有效的机器人令牌, 跳过自启动")
		return
	}

	go func() {
		startCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := bot.Start(startCtx, s.Discord.BotToken); err != nil {
			logger.Error("Discord 机器人启动失败", logger.ErrorField(err))
		}
	}()
}
