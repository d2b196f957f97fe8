package cmd

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/parkerpayne/bard/config"
	"github.com/parkerpayne/bard/db"
	"github.com/parkerpayne/bard/model"
	"github.com/parkerpayne/bard/repository"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "查看下载任务历史",
	Long:  `从 MySQL 读取已结束的下载任务, 需要 DB_ENABLED=true`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()
		if !cfg.DBEnabled {
			log.Fatal("任务历史未启用, 请设置 DB_ENABLED=true")
		}

		if err := db.ConnectGormDB(cfg); err != nil {
			log.Fatalf("无法连接到数据库: %v", err)
		}
		defer db.CloseGormDB()

		if err := db.AutoMigrateModels(&model.JobRecord{}); err != nil {
			log.Fatalf("任务历史表迁移失败: %v", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		records, err := repository.NewJobHistoryRepository(db.GormDB).Recent(ctx, historyLimit)
		if err != nil {
			log.Fatalf("读取任务历史失败: %v", err)
		}
		if len(records) == 0 {
			fmt.Println("暂无任务历史")
			return
		}

		for _, r := range records {
			name := r.Filename
			if r.Status == string(model.JobFailed) {
				name = r.Error
			}
			fmt.Printf("%s  %-9s  %s  %s\n", r.FinishedAt.Format(time.DateTime), r.Status, r.Title, name)
		}
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "显示条数")
	rootCmd.AddCommand(historyCmd)
}
