package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	appconfig "lostfound/internal/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// Store S3 兼容对象存储上的照片 blob 仓库。
//
// 仓库只按路径存取不透明的字节，路径约定见 ObjectPath。
type Store struct {
	client        *s3.Client
	bucket        string
	publicBaseURL string
}

// New 根据配置创建 blob 仓库。
func New(ctx context.Context, cfg *appconfig.S3Config) (*Store, error) {
	resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		return aws.Endpoint{
			URL:               cfg.Endpoint,
			SigningRegion:     region,
			HostnameImmutable: true,
		}, nil
	})

	awsCfg, err := config.LoadDefaultConfig(
		ctx,
		config.WithRegion(cfg.Region),
		config.WithEndpointResolverWithOptions(resolver),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
	})

	base := strings.TrimSuffix(cfg.PublicBaseURL, "/")
	return &Store{
		client:        client,
		bucket:        cfg.Bucket,
		publicBaseURL: base,
	}, nil
}

// Upload 上传对象并返回可公开访问的 URL。
func (s *Store) Upload(ctx context.Context, objectPath string, data []byte, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(objectPath),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", objectPath, err)
	}
	return s.publicBaseURL + "/" + objectPath, nil
}

// Remove 删除对象。
func (s *Store) Remove(ctx context.Context, objectPath string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectPath),
	})
	if err != nil {
		return fmt.Errorf("delete object %s: %w", objectPath, err)
	}
	return nil
}

// RemoveByURL 根据公开 URL 删除对象；URL 不属于本仓库时忽略。
func (s *Store) RemoveByURL(ctx context.Context, url string) error {
	objectPath, ok := s.PathFromURL(url)
	if !ok {
		return nil
	}
	return s.Remove(ctx, objectPath)
}

// PathFromURL 将公开 URL 还原为对象路径。
func (s *Store) PathFromURL(url string) (string, bool) {
	if s.publicBaseURL == "" || !strings.HasPrefix(url, s.publicBaseURL+"/") {
		return "", false
	}
	return strings.TrimPrefix(url, s.publicBaseURL+"/"), true
}

// ObjectPath 生成照片对象路径：{userId}/{token}-{timestamp}.{ext}。
func ObjectPath(userID, filename string) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(filename), "."))
	if ext == "" {
		ext = "bin"
	}
	token := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("%s/%s-%d.%s", userID, token, time.Now().Unix(), ext)
}
