package repository

import "errors"

var (
	// ErrNotFound 表示目标记录不存在。
	ErrNotFound = errors.New("repository: record not found")
	// ErrDuplicateKey 表示 file_path 已被其他记录占用。
	ErrDuplicateKey = errors.New("repository: duplicate storage key")
)
