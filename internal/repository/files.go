package repository

import (
	"context"
	"time"
)

// FileRecord 代表 files 表中的一行：一次成功入库的文件。
// FilePath 在表内唯一，且对象存储中必须存在同名对象。
type FileRecord struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	Type       string    `json:"type"`
	FilePath   string    `json:"file_path"`
	PreviewURL string    `json:"preview_url"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// NewFileRecord 是插入前的记录，ID 与时间戳由存储层生成。
type NewFileRecord struct {
	Name       string
	Size       int64
	Type       string
	FilePath   string
	PreviewURL string
}

// FileRepository 统一文件元数据持久层接口。
type FileRepository interface {
	Insert(ctx context.Context, record NewFileRecord) (*FileRecord, error)
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*FileRecord, error)
	// List 按 created_at 倒序返回全部记录，是文件列表的唯一数据来源。
	List(ctx context.Context) ([]FileRecord, error)
	// Probe 检查 files 表是否可查询，用于引导状态检测。
	Probe(ctx context.Context) error
}
