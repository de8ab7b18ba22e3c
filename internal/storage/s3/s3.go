package s3

import (
	"context"
	"fmt"
	"io"
	"strings"

	"fileshelf/internal/storage"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Config 包含 S3/MinIO 存储所需的配置。
type Config struct {
	Endpoint      string // 不含协议，如 "localhost:9000" 或 "s3.amazonaws.com"
	AccessKey     string
	SecretKey     string
	Bucket        string
	Region        string
	UseSSL        bool   // 是否使用 HTTPS
	PathStyle     bool   // 是否使用路径风格（MinIO 需要 true）
	PublicBaseURL string // 为空时按 endpoint/bucket 推导
}

// Storage 实现了 storage.ObjectStore 接口，使用 S3 兼容存储。
type Storage struct {
	client  *minio.Client
	bucket  string
	region  string
	baseURL string
}

// New 创建新的 S3 存储实例。bucket 不存在时不会自动创建，需通过 EnsureContainer 显式引导。
func New(cfg Config) (*Storage, error) {
	lookup := minio.BucketLookupAuto
	if cfg.PathStyle {
		lookup = minio.BucketLookupPath
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:       cfg.UseSSL,
		Region:       cfg.Region,
		BucketLookup: lookup,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &Storage{
		client:  client,
		bucket:  cfg.Bucket,
		region:  cfg.Region,
		baseURL: publicBaseURL(cfg),
	}, nil
}

// Put 将对象写入 S3 存储；key 已存在时返回 storage.ErrObjectExists。
func (s *Storage) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("s3 storage uninitialized")
	}

	cleanKey, err := storage.CleanKey(key)
	if err != nil {
		return err
	}

	// S3 不支持原子的"不存在才写"，先 Stat 一次；key 的唯一性由派生规则保证
	if _, err := s.client.StatObject(ctx, s.bucket, cleanKey, minio.StatObjectOptions{}); err == nil {
		return storage.ErrObjectExists
	} else if !isNotFound(err) {
		return fmt.Errorf("stat object: %w", err)
	}

	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if _, err := s.client.PutObject(ctx, s.bucket, cleanKey, r, size, minio.PutObjectOptions{
		ContentType:  contentType,
		CacheControl: "max-age=3600",
	}); err != nil {
		if isBucketMissing(err) {
			return storage.ErrBucketMissing
		}
		return fmt.Errorf("put object: %w", err)
	}

	return nil
}

// Delete 从 S3 存储删除对象，对象不存在不视为错误。
func (s *Storage) Delete(ctx context.Context, key string) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("s3 storage uninitialized")
	}

	cleanKey, err := storage.CleanKey(key)
	if err != nil {
		return err
	}

	if err := s.client.RemoveObject(ctx, s.bucket, cleanKey, minio.RemoveObjectOptions{}); err != nil && !isNotFound(err) {
		return fmt.Errorf("remove object: %w", err)
	}
	return nil
}

// PublicURL 返回公开读 bucket 下的对象地址。
func (s *Storage) PublicURL(key string) string {
	return storage.JoinURL(s.baseURL, key)
}

// Open 从 S3 存储读取对象。
func (s *Storage) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if s == nil || s.client == nil {
		return nil, fmt.Errorf("s3 storage uninitialized")
	}

	cleanKey, err := storage.CleanKey(key)
	if err != nil {
		return nil, err
	}

	obj, err := s.client.GetObject(ctx, s.bucket, cleanKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object: %w", err)
	}

	// 验证对象是否存在
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", storage.ErrObjectNotFound, key)
		}
		return nil, fmt.Errorf("stat object: %w", err)
	}

	return obj, nil
}

// Probe 检查 bucket 存在并尝试列出一个对象。
func (s *Storage) Probe(ctx context.Context) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("s3 storage uninitialized")
	}

	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket exists: %w", err)
	}
	if !exists {
		return storage.ErrBucketMissing
	}

	listCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	for obj := range s.client.ListObjects(listCtx, s.bucket, minio.ListObjectsOptions{MaxKeys: 1}) {
		if obj.Err != nil {
			return fmt.Errorf("list objects: %w", obj.Err)
		}
		break
	}
	return nil
}

// EnsureContainer 创建 bucket 并设置公开读策略。
func (s *Storage) EnsureContainer(ctx context.Context) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("s3 storage uninitialized")
	}

	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket exists: %w", err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{
			Region: s.region,
		}); err != nil {
			return fmt.Errorf("create bucket: %w", err)
		}
	}

	if err := s.client.SetBucketPolicy(ctx, s.bucket, publicReadPolicy(s.bucket)); err != nil {
		return fmt.Errorf("set bucket policy: %w", err)
	}
	return nil
}

func publicBaseURL(cfg Config) string {
	if cfg.PublicBaseURL != "" {
		return strings.TrimRight(cfg.PublicBaseURL, "/")
	}
	scheme := "http"
	if cfg.UseSSL {
		scheme = "https"
	}
	if cfg.PathStyle {
		return fmt.Sprintf("%s://%s/%s", scheme, cfg.Endpoint, cfg.Bucket)
	}
	return fmt.Sprintf("%s://%s.%s", scheme, cfg.Bucket, cfg.Endpoint)
}

func publicReadPolicy(bucket string) string {
	return fmt.Sprintf(`{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Principal":{"AWS":["*"]},"Action":["s3:GetObject"],"Resource":["arn:aws:s3:::%s/*"]}]}`, bucket)
}

func isNotFound(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NotFound"
}

func isBucketMissing(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchBucket"
}
