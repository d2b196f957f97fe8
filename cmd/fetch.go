package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/parkerpayne/bard/config"
	"github.com/parkerpayne/bard/core/broadcast"
	"github.com/parkerpayne/bard/core/fetch"
	"github.com/parkerpayne/bard/logger"
	"github.com/parkerpayne/bard/model"
)

var fetchPlaylist string

var fetchCmd = &cobra.Command{
	Use:   "fetch <url>",
	Short: "下载一首歌曲到曲库",
	Long:  `通过下载流水线获取 YouTube 音频, 转码、归一化后移入曲库, 可选追加到歌单`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFetch(args[0], fetchPlaylist)
	},
}

func init() {
	fetchCmd.Flags().StringVarP(&fetchPlaylist, "playlist", "p", "", "追加到的歌单 (serialized name)")
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(url, target string) error {
	if !fetch.ValidURL(url) {
		return fmt.Errorf("invalid YouTube URL: %s", url)
	}

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

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	err = a.ffmpeg.Available(checkCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("ffmpeg is not available: %w", err)
	}

	if target != "" {
		if _, err := a.playlists.Get(target); err != nil {
			return fmt.Errorf("playlist %s: %w", target, err)
		}
	}

	sub := a.hub.Subscribe(broadcast.TopicDownloads)
	defer a.hub.Unsubscribe(sub)

	a.downloads.Start(ctx)
	defer a.downloads.Wait()
	defer stop()

	id, err := a.downloads.Submit(url, target)
	if err != nil {
		return err
	}

	for {
		msg, err := sub.Next(ctx, time.Minute)
		if err != nil {
			return err
		}
		var job model.Job
		if err := json.Unmarshal(msg, &job); err != nil || job.ID != id {
			continue
		}

		fmt.Printf("[%3d%%] %s\n", job.Progress, job.Message)
		switch job.Status {
		case model.JobCompleted:
			fmt.Printf("已保存: %s\n", job.Filename)
			return nil
		case model.JobFailed:
			return errors.New(job.Error)
		}
	}
}
