// Package driver 根据配置构造对象存储实现。
package driver

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"fileshelf/internal/config"
	"fileshelf/internal/storage"
	"fileshelf/internal/storage/awss3"
	"fileshelf/internal/storage/local"
	s3storage "fileshelf/internal/storage/s3"
)

// Open 按 STORAGE_DRIVER 创建对象存储。本地驱动额外返回用于公开读的 handler，
// 其他驱动返回 nil handler。
func Open(ctx context.Context, cfg *config.Config) (storage.ObjectStore, http.Handler, error) {
	switch cfg.StorageDriver {
	case config.StorageDriverLocal:
		store := local.New(cfg.StorageDir, LocalBaseURL(cfg))
		return store, store.Handler(), nil

	case config.StorageDriverS3:
		store, err := s3storage.New(s3storage.Config{
			Endpoint:      cfg.S3Endpoint,
			AccessKey:     cfg.S3AccessKey,
			SecretKey:     cfg.S3SecretKey,
			Bucket:        cfg.S3Bucket,
			Region:        cfg.S3Region,
			UseSSL:        cfg.S3UseSSL,
			PathStyle:     cfg.S3PathStyle,
			PublicBaseURL: cfg.PublicBaseURL,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil

	case config.StorageDriverAWS:
		store, err := awss3.New(ctx, awss3.Config{
			Endpoint:      awsEndpoint(cfg),
			AccessKey:     cfg.S3AccessKey,
			SecretKey:     cfg.S3SecretKey,
			Bucket:        cfg.S3Bucket,
			Region:        cfg.S3Region,
			PathStyle:     cfg.S3PathStyle,
			PublicBaseURL: cfg.PublicBaseURL,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	}
	return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
}

// LocalBaseURL 返回本地驱动的公开地址前缀，未配置时指向本服务的 /objects。
func LocalBaseURL(cfg *config.Config) string {
	if cfg.PublicBaseURL != "" {
		return cfg.PublicBaseURL
	}
	return fmt.Sprintf("http://localhost:%s/objects", cfg.HTTPPort)
}

// awsEndpoint 为不带协议的自定义端点补全协议；指向 AWS 官方域名时使用 SDK 默认解析。
func awsEndpoint(cfg *config.Config) string {
	endpoint := strings.TrimSpace(cfg.S3Endpoint)
	if endpoint == "" || strings.HasSuffix(endpoint, "amazonaws.com") {
		return ""
	}
	if strings.Contains(endpoint, "://") {
		return endpoint
	}
	if cfg.S3UseSSL {
		return "https://" + endpoint
	}
	return "http://" + endpoint
}
