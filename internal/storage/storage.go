package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
)

var (
	// ErrObjectExists 表示目标 key 已存在，写入不会覆盖。
	ErrObjectExists = errors.New("storage: object already exists")
	// ErrObjectNotFound 表示读取的对象不存在。
	ErrObjectNotFound = errors.New("storage: object not found")
	// ErrBucketMissing 表示存储容器（bucket 或目录）尚未创建。
	ErrBucketMissing = errors.New("storage: bucket does not exist")
)

// Writer 定义对象存储写接口，写入不覆盖已有对象，删除是幂等的。
type Writer interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	PublicURL(key string) string
}

// Reader 定义对象存储读接口，支持流式读取。
type Reader interface {
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// Prober 检查存储容器是否存在且可访问，不会隐式创建。
type Prober interface {
	Probe(ctx context.Context) error
}

// Bootstrapper 显式创建存储容器，仅由引导流程调用。
type Bootstrapper interface {
	EnsureContainer(ctx context.Context) error
}

// ObjectStore 组合了全部能力的完整存储接口。
type ObjectStore interface {
	Writer
	Reader
	Prober
	Bootstrapper
}

// CleanKey 校验并规范化对象 key，拒绝空 key 与路径穿越。
func CleanKey(key string) (string, error) {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return "", fmt.Errorf("storage: empty key")
	}
	cleaned := path.Clean("/" + strings.ReplaceAll(trimmed, "\\", "/"))
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == "" || cleaned == "." {
		return "", fmt.Errorf("storage: invalid key %q", key)
	}
	if cleaned != trimmed {
		return "", fmt.Errorf("storage: key %q is not canonical", key)
	}
	return cleaned, nil
}

// JoinURL 拼接公开访问地址，key 的每一段都会做路径转义。
func JoinURL(base, key string) string {
	segments := strings.Split(key, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.TrimRight(base, "/") + "/" + strings.Join(segments, "/")
}
