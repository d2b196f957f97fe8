package cmd

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/parkerpayne/bard/config"
	"github.com/parkerpayne/bard/storage"
)

var minioCmd = &cobra.Command{
	Use:   "minio",
	Short: "MinIO封面存储检查",
	Long:  `连接MinIO服务器, 确保存储桶存在并列出已上传的歌单封面。`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("开始连接MinIO服务器...")

		cfg := config.Load()
		fmt.Printf("MinIO配置: %s, Bucket: %s\n", cfg.MinioEndpoint, cfg.MinioBucket)

		store, err := storage.NewMinioArtworkStore(cfg)
		if err != nil {
			log.Fatalf("无法连接到MinIO: %v", err)
		}
		fmt.Println("MinIO连接成功！")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		objects, err := store.List(ctx)
		if err != nil {
			log.Fatalf("列出封面失败: %v", err)
		}

		var total int64
		for _, obj := range objects {
			total += obj.Size
			fmt.Printf("  %-40s %10d  %s\n", obj.Name, obj.Size, obj.LastModified.Format(time.RFC3339))
		}
		fmt.Printf("共 %d 个封面, %.2f KB\n", len(objects), float64(total)/1024)
	},
}

func init() {
	rootCmd.AddCommand(minioCmd)
}
