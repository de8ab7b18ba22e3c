package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"fileshelf/internal/storage"
)

// Store 将对象写入本地文件系统，BaseDir 即存储容器。
type Store struct {
	BaseDir string
	BaseURL string
}

func New(baseDir, baseURL string) *Store {
	return &Store{BaseDir: baseDir, BaseURL: baseURL}
}

// Put 先写临时文件再以硬链接落盘，目标已存在时返回 storage.ErrObjectExists。
func (s *Store) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if s == nil {
		return fmt.Errorf("local store uninitialized")
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	targetPath, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := s.Probe(ctx); err != nil {
		return err
	}
	if _, err := os.Lstat(targetPath); err == nil {
		return storage.ErrObjectExists
	}
	if err := os.MkdirAll(filepath.Dir(targetPath), 0o755); err != nil {
		return fmt.Errorf("ensure dir: %w", err)
	}

	file, err := os.CreateTemp(filepath.Dir(targetPath), ".upload-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tempPath := file.Name()
	defer os.Remove(tempPath)

	written, err := io.Copy(file, r)
	if err != nil {
		file.Close()
		return fmt.Errorf("write file: %w", err)
	}
	if size >= 0 && written != size {
		file.Close()
		return fmt.Errorf("write file: expected %d bytes, got %d", size, written)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		return fmt.Errorf("sync file: %w", err)
	}

	if err := file.Close(); err != nil {
		return fmt.Errorf("close file: %w", err)
	}

	// os.Link 在目标存在时失败，避免 rename 覆盖并发写入的同名对象
	if err := os.Link(tempPath, targetPath); err != nil {
		if errors.Is(err, os.ErrExist) {
			return storage.ErrObjectExists
		}
		return fmt.Errorf("link temp file: %w", err)
	}

	return nil
}

// Delete 删除对象，不存在时视为成功。
func (s *Store) Delete(ctx context.Context, key string) error {
	if s == nil {
		return fmt.Errorf("local store uninitialized")
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	targetPath, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(targetPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove file: %w", err)
	}
	return nil
}

// PublicURL 返回对象的公开访问地址。
func (s *Store) PublicURL(key string) string {
	return storage.JoinURL(s.BaseURL, key)
}

// Open 打开并返回指定 key 对应的文件内容。
func (s *Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if s == nil {
		return nil, fmt.Errorf("local store uninitialized")
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	targetPath, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(targetPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", storage.ErrObjectNotFound, key)
		}
		return nil, fmt.Errorf("open file: %w", err)
	}

	return file, nil
}

// Probe 检查存储目录是否存在。
func (s *Store) Probe(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("local store uninitialized")
	}
	info, err := os.Stat(s.BaseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return storage.ErrBucketMissing
		}
		return fmt.Errorf("stat base dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("base dir %s is not a directory", s.BaseDir)
	}
	return nil
}

// EnsureContainer 创建存储目录。
func (s *Store) EnsureContainer(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("local store uninitialized")
	}
	return os.MkdirAll(s.BaseDir, 0o755)
}

// Handler 按 key 提供单个对象的公开读，供 PublicURL 指向。
// 不提供目录列表，隐藏文件（含写入中的临时文件）一律 404，
// 对象只能通过元数据记录中的地址访问。
func (s *Store) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}

		key := strings.TrimPrefix(r.URL.Path, "/")
		if !servableKey(key) {
			http.NotFound(w, r)
			return
		}
		path, err := s.resolve(key)
		if err != nil {
			http.NotFound(w, r)
			return
		}

		f, err := os.Open(path)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil || !info.Mode().IsRegular() {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Cache-Control", "max-age=3600")
		http.ServeContent(w, r, info.Name(), info.ModTime(), f)
	})
}

// servableKey 拒绝空路径、目录路径和任何以 "." 开头的路径段。
func servableKey(key string) bool {
	if key == "" || strings.HasSuffix(key, "/") {
		return false
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == "" || strings.HasPrefix(seg, ".") {
			return false
		}
	}
	return true
}

func (s *Store) resolve(key string) (string, error) {
	cleaned, err := storage.CleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.BaseDir, filepath.FromSlash(cleaned)), nil
}
