package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/parkerpayne/bard/config"
	"github.com/parkerpayne/bard/logger"
)

const minioArtworkPrefix = "artwork/"

// MinioArtworkStore 使用 MinIO 存储歌单封面
type MinioArtworkStore struct {
	client *minio.Client
	bucket string
}

// NewMinioArtworkStore 初始化 MinIO 客户端并确保存储桶存在
func NewMinioArtworkStore(cfg *config.Config) (*MinioArtworkStore, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("创建 MinIO 客户端失败: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.MinioBucket)
	if err != nil {
		return nil, fmt.Errorf("检查存储桶失败: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.MinioBucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("创建存储桶失败: %w", err)
		}
		logger.Info("成功创建存储桶", logger.String("bucket", cfg.MinioBucket))
	}

	return &MinioArtworkStore{client: client, bucket: cfg.MinioBucket}, nil
}

func (s *MinioArtworkStore) Save(ctx context.Context, name, _ string, r io.Reader, size int64) (string, error) {
	_, err := s.client.PutObject(ctx, s.bucket, minioArtworkPrefix+name, r, size, minio.PutObjectOptions{
		ContentType: contentType(name),
	})
	if err != nil {
		return "", fmt.Errorf("上传封面失败: %w", err)
	}
	return artworkPrefix + name, nil
}

func (s *MinioArtworkStore) Open(ctx context.Context, name string) (io.ReadCloser, string, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, minioArtworkPrefix+refName(name), minio.GetObjectOptions{})
	if err != nil {
		return nil, "", err
	}
	info, err := obj.Stat()
	if err != nil {
		obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, "", ErrArtworkNotFound
		}
		return nil, "", err
	}
	ct := info.ContentType
	if ct == "" {
		ct = contentType(name)
	}
	return obj, ct, nil
}

func (s *MinioArtworkStore) Delete(ctx context.Context, ref string) error {
	if ref == "" {
		return nil
	}
	return s.client.RemoveObject(ctx, s.bucket, minioArtworkPrefix+refName(ref), minio.RemoveObjectOptions{})
}

// ArtworkObject 存储桶中的一个封面对象
type ArtworkObject struct {
	Name         string
	Size         int64
	LastModified time.Time
}

// List returns every stored artwork object.
func (s *MinioArtworkStore) List(ctx context.Context) ([]ArtworkObject, error) {
	var out []ArtworkObject
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    minioArtworkPrefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("列出封面失败: %w", obj.Err)
		}
		out = append(out, ArtworkObject{
			Name:         strings.TrimPrefix(obj.Key, minioArtworkPrefix),
			Size:         obj.Size,
			LastModified: obj.LastModified,
		})
	}
	return out, nil
}
