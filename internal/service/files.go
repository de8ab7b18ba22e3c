package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"fileshelf/internal/repository"
	"fileshelf/internal/storage"
)

// ObjectStore 是文件服务需要的存储能力。
type ObjectStore interface {
	storage.Writer
	storage.Reader
	storage.Prober
}

// FileService 封装文件列表、下载与删除的业务流程。
// 上传由 ingest.Coordinator 负责，这里不写入新对象。
type FileService struct {
	repo   repository.FileRepository
	store  ObjectStore
	logger *slog.Logger
}

func NewFileService(repo repository.FileRepository, store ObjectStore, logger *slog.Logger) *FileService {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileService{repo: repo, store: store, logger: logger.With("component", "files")}
}

// ListFiles 返回全部文件记录，最新的在前。
func (s *FileService) ListFiles(ctx context.Context) ([]repository.FileRecord, error) {
	if s == nil || s.repo == nil {
		return nil, errors.New("file service not initialized")
	}
	return s.repo.List(ctx)
}

// GetFile 按 ID 查询文件记录。
func (s *FileService) GetFile(ctx context.Context, id string) (*repository.FileRecord, error) {
	if s == nil || s.repo == nil {
		return nil, errors.New("file service not initialized")
	}
	return s.repo.GetByID(ctx, id)
}

// OpenFile 返回文件记录及其内容，调用方负责关闭 reader。
func (s *FileService) OpenFile(ctx context.Context, id string) (*repository.FileRecord, io.ReadCloser, error) {
	rec, err := s.GetFile(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	body, err := s.store.Open(ctx, rec.FilePath)
	if err != nil {
		return nil, nil, fmt.Errorf("open object: %w", err)
	}
	return rec, body, nil
}

// DeleteRecord 先删除对象再删除记录。两步都是幂等的，重复删除同一条记录不会报错。
func (s *FileService) DeleteRecord(ctx context.Context, rec repository.FileRecord) error {
	if err := s.store.Delete(ctx, rec.FilePath); err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	if err := s.repo.Delete(ctx, rec.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Debug("row already absent", "id", rec.ID)
			return nil
		}
		return fmt.Errorf("delete record: %w", err)
	}
	s.logger.Info("file deleted", "id", rec.ID, "key", rec.FilePath)
	return nil
}

// DeleteFile 按 ID 删除文件；ID 不存在时返回 repository.ErrNotFound。
func (s *FileService) DeleteFile(ctx context.Context, id string) error {
	rec, err := s.GetFile(ctx, id)
	if err != nil {
		return err
	}
	return s.DeleteRecord(ctx, *rec)
}

// StoreStatus 描述引导状态。
type StoreStatus struct {
	BucketReady bool   `json:"bucket_ready"`
	TableReady  bool   `json:"table_ready"`
	BucketError string `json:"bucket_error,omitempty"`
	TableError  string `json:"table_error,omitempty"`
}

// Status 检查 bucket 与 files 表是否已创建，不做任何创建动作。
func (s *FileService) Status(ctx context.Context) StoreStatus {
	var st StoreStatus
	if err := s.store.Probe(ctx); err != nil {
		st.BucketError = err.Error()
	} else {
		st.BucketReady = true
	}
	if err := s.repo.Probe(ctx); err != nil {
		st.TableError = err.Error()
	} else {
		st.TableReady = true
	}
	return st
}
