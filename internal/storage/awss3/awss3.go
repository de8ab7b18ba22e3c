// Package awss3 基于 aws-sdk-go-v2 实现 storage.ObjectStore。
// 与 MinIO 驱动不同，写入使用条件请求（If-None-Match: *），不覆盖由 S3 服务端保证。
package awss3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"fileshelf/internal/storage"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// Config 包含连接 S3 bucket 所需的配置。
type Config struct {
	Endpoint      string // 可选的自定义端点，需包含协议
	AccessKey     string
	SecretKey     string
	Bucket        string
	Region        string
	PathStyle     bool
	PublicBaseURL string
}

// API 是 Store 用到的 *s3.Client 方法子集，测试中可替换。
type API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	CreateBucket(ctx context.Context, in *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
}

// Store 是基于 S3 的对象存储。
type Store struct {
	api     API
	bucket  string
	region  string
	baseURL string
}

var loadDefaultConfig = awsconfig.LoadDefaultConfig

// New 使用静态凭证创建 S3 客户端；未配置 access key 时走默认凭证链。
func New(ctx context.Context, cfg Config) (*Store, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := loadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return NewWithAPI(client, cfg), nil
}

// NewWithAPI 包装已有的客户端。
func NewWithAPI(api API, cfg Config) *Store {
	return &Store{
		api:     api,
		bucket:  cfg.Bucket,
		region:  cfg.Region,
		baseURL: publicBaseURL(cfg),
	}
}

// Put 带 If-None-Match 上传对象，key 已存在时返回 storage.ErrObjectExists。
func (s *Store) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	cleanKey, err := storage.CleanKey(key)
	if err != nil {
		return err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	in := &s3.PutObjectInput{
		Bucket:       aws.String(s.bucket),
		Key:          aws.String(cleanKey),
		Body:         r,
		ContentType:  aws.String(contentType),
		CacheControl: aws.String("max-age=3600"),
		IfNoneMatch:  aws.String("*"),
	}
	if size >= 0 {
		in.ContentLength = aws.Int64(size)
	}

	if _, err := s.api.PutObject(ctx, in); err != nil {
		switch errorCode(err) {
		case "PreconditionFailed", "ConditionalRequestConflict":
			return storage.ErrObjectExists
		case "NoSuchBucket":
			return storage.ErrBucketMissing
		}
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

// Delete 删除对象，S3 对不存在的 key 同样返回成功。
func (s *Store) Delete(ctx context.Context, key string) error {
	cleanKey, err := storage.CleanKey(key)
	if err != nil {
		return err
	}
	_, err = s.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(cleanKey),
	})
	if err != nil && errorCode(err) != "NoSuchKey" {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

func (s *Store) PublicURL(key string) string {
	return storage.JoinURL(s.baseURL, key)
}

// Open 以流的方式读取对象内容。
func (s *Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	cleanKey, err := storage.CleanKey(key)
	if err != nil {
		return nil, err
	}
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(cleanKey),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) || errorCode(err) == "NoSuchKey" {
			return nil, fmt.Errorf("%w: %s", storage.ErrObjectNotFound, key)
		}
		return nil, fmt.Errorf("get object: %w", err)
	}
	return out.Body, nil
}

// Probe 通过 HeadBucket 检查 bucket，并最多列出一个对象。
func (s *Store) Probe(ctx context.Context) error {
	if _, err := s.api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		var nf *types.NotFound
		if errors.As(err, &nf) || errorCode(err) == "NoSuchBucket" || errorCode(err) == "NotFound" {
			return storage.ErrBucketMissing
		}
		return fmt.Errorf("head bucket: %w", err)
	}
	if _, err := s.api.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		MaxKeys: aws.Int32(1),
	}); err != nil {
		return fmt.Errorf("list objects: %w", err)
	}
	return nil
}

// EnsureContainer 在 bucket 不存在时创建它。
func (s *Store) EnsureContainer(ctx context.Context) error {
	err := s.Probe(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, storage.ErrBucketMissing) {
		return err
	}

	in := &s3.CreateBucketInput{Bucket: aws.String(s.bucket)}
	if s.region != "" && s.region != "us-east-1" {
		in.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(s.region),
		}
	}
	if _, err := s.api.CreateBucket(ctx, in); err != nil {
		return fmt.Errorf("create bucket: %w", err)
	}
	return nil
}

func publicBaseURL(cfg Config) string {
	if cfg.PublicBaseURL != "" {
		return strings.TrimRight(cfg.PublicBaseURL, "/")
	}
	if cfg.Endpoint != "" {
		return strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
}

func errorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}
