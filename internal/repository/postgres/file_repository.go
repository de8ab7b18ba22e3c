package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"fileshelf/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// uniqueViolation 是 PostgreSQL 唯一约束冲突的 SQLSTATE。
const uniqueViolation = "23505"

// NewFileRepository 返回基于 *sql.DB 的 Postgres 实现。
func NewFileRepository(db *sql.DB) *FileRepository {
	return &FileRepository{db: db, newID: uuid.NewString}
}

// FileRepository 实现 repository.FileRepository。
type FileRepository struct {
	db    *sql.DB
	newID func() string
}

var fileSelectColumns = []string{
	"id",
	"name",
	"size",
	"type",
	"file_path",
	"preview_url",
	"created_at",
	"updated_at",
}

var fileInsertColumns = []string{
	"id",
	"name",
	"size",
	"type",
	"file_path",
	"preview_url",
}

// Insert 插入文件记录并返回数据库生成字段（如时间戳）。
func (r *FileRepository) Insert(ctx context.Context, record repository.NewFileRecord) (*repository.FileRecord, error) {
	if record.FilePath == "" {
		return nil, fmt.Errorf("file_path is required")
	}
	if record.Size < 0 {
		return nil, fmt.Errorf("size must not be negative")
	}

	placeholders := make([]string, len(fileInsertColumns))
	for i := range fileInsertColumns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	query := fmt.Sprintf(`INSERT INTO files (%s)
	VALUES (%s)
	RETURNING %s`,
		strings.Join(fileInsertColumns, ","),
		strings.Join(placeholders, ","),
		strings.Join(fileSelectColumns, ","),
	)

	row := r.db.QueryRowContext(
		ctx,
		query,
		r.newID(),
		record.Name,
		record.Size,
		record.Type,
		record.FilePath,
		record.PreviewURL,
	)

	rec, err := scanFileRecord(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, fmt.Errorf("insert file record %s: %w", record.FilePath, repository.ErrDuplicateKey)
		}
		return nil, fmt.Errorf("insert file record: %w", err)
	}
	return rec, nil
}

// Delete 删除指定记录，记录不存在时返回 repository.ErrNotFound。
func (r *FileRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM files WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete file record: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// GetByID 通过主键查询文件记录。
func (r *FileRepository) GetByID(ctx context.Context, id string) (*repository.FileRecord, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, repository.ErrNotFound
	}

	query := fmt.Sprintf(`SELECT %s FROM files WHERE id = $1`, strings.Join(fileSelectColumns, ","))
	row := r.db.QueryRowContext(ctx, query, id)
	file, err := scanFileRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return file, nil
}

// List 按创建时间倒序返回全部文件。
func (r *FileRepository) List(ctx context.Context) ([]repository.FileRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM files ORDER BY created_at DESC`, strings.Join(fileSelectColumns, ","))
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []repository.FileRecord{}
	for rows.Next() {
		rec, err := scanFileRecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *rec)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// Probe 对 files 表做一次最小查询。
func (r *FileRepository) Probe(ctx context.Context) error {
	var id string
	err := r.db.QueryRowContext(ctx, `SELECT id FROM files LIMIT 1`).Scan(&id)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("probe files table: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFileRecord(rs rowScanner) (*repository.FileRecord, error) {
	var rec repository.FileRecord
	if err := rs.Scan(
		&rec.ID,
		&rec.Name,
		&rec.Size,
		&rec.Type,
		&rec.FilePath,
		&rec.PreviewURL,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &rec, nil
}
