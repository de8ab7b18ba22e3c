package ingest

import (
	"io"
	"strings"
	"unicode/utf8"
)

// RejectReason 是候选文件未能进入上传批次的原因。
type RejectReason string

const (
	RejectSize      RejectReason = "size"
	RejectFormat    RejectReason = "format"
	RejectName      RejectReason = "name"
	RejectDuplicate RejectReason = "duplicate"
)

const (
	DefaultMaxFileSize   int64 = 50 * 1024 * 1024
	DefaultMaxNameLength       = 255
)

// SupportedExtensions 列出允许上传的扩展名（小写，不含点）。
var SupportedExtensions = []string{
	"jpg", "jpeg", "png", "gif", "webp", "svg", "bmp",
	"pdf",
	"doc", "docx",
	"xls", "xlsx",
	"ppt", "pptx",
	"txt", "csv",
	"mp4", "mov", "avi", "mkv", "webm",
	"mp3", "wav", "m4a", "aac", "ogg",
	"zip", "rar", "7z",
}

// Candidate 是用户选择、尚未入库的文件。仅以名称加大小区分重复。
type Candidate struct {
	Name     string
	Size     int64
	MimeType string
	Open     func() (io.ReadCloser, error)
}

// Rejection 记录一个被拒绝的候选文件及其全部原因。
type Rejection struct {
	Name    string         `json:"name"`
	Size    int64          `json:"size"`
	Reasons []RejectReason `json:"reasons"`
}

// Validator 判断候选文件是否允许进入批次，无副作用。
type Validator struct {
	MaxSize       int64
	MaxNameLength int
	extensions    map[string]struct{}
}

// NewValidator 使用给定上限创建校验器，非正数取默认值。
func NewValidator(maxSize int64) *Validator {
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	exts := make(map[string]struct{}, len(SupportedExtensions))
	for _, ext := range SupportedExtensions {
		exts[ext] = struct{}{}
	}
	return &Validator{
		MaxSize:       maxSize,
		MaxNameLength: DefaultMaxNameLength,
		extensions:    exts,
	}
}

// Validate 返回候选文件的全部拒绝原因，顺序固定为 size、format、name、duplicate。
// admitted 是同一批次中已接受的文件；结果为空表示接受。
func (v *Validator) Validate(c Candidate, admitted []Candidate) []RejectReason {
	var reasons []RejectReason

	if c.Size > v.MaxSize {
		reasons = append(reasons, RejectSize)
	}
	if !v.SupportedFormat(c.Name) {
		reasons = append(reasons, RejectFormat)
	}
	if utf8.RuneCountInString(c.Name) > v.MaxNameLength {
		reasons = append(reasons, RejectName)
	}
	for _, existing := range admitted {
		if existing.Name == c.Name && existing.Size == c.Size {
			reasons = append(reasons, RejectDuplicate)
			break
		}
	}

	return reasons
}

// Admit 按提交顺序筛选批次，返回接受的文件与被拒绝的文件。
func (v *Validator) Admit(batch []Candidate) ([]Candidate, []Rejection) {
	admitted := make([]Candidate, 0, len(batch))
	var rejected []Rejection

	for _, c := range batch {
		reasons := v.Validate(c, admitted)
		if len(reasons) > 0 {
			rejected = append(rejected, Rejection{Name: c.Name, Size: c.Size, Reasons: reasons})
			continue
		}
		admitted = append(admitted, c)
	}

	return admitted, rejected
}

// SupportedFormat 判断文件名扩展名是否在支持列表内；没有扩展名视为不支持。
func (v *Validator) SupportedFormat(name string) bool {
	idx := strings.LastIndex(name, ".")
	if idx < 0 || idx == len(name)-1 {
		return false
	}
	_, ok := v.extensions[strings.ToLower(name[idx+1:])]
	return ok
}
