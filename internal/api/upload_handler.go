package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"fileshelf/internal/ingest"

	"github.com/go-chi/chi/v5"
)

const multipartMemoryBudget int64 = 16 * 1024 * 1024

// Ingester 执行已通过校验的批次上传。
type Ingester interface {
	Ingest(ctx context.Context, batch []ingest.Candidate) (ingest.Outcome, error)
}

// UploadHandler 接受管理员的批量上传。
type UploadHandler struct {
	validator *ingest.Validator
	ingester  Ingester
	maxFiles  int
	logger    *slog.Logger
}

func NewUploadHandler(validator *ingest.Validator, ingester Ingester, maxFiles int, logger *slog.Logger) *UploadHandler {
	if maxFiles <= 0 {
		maxFiles = 20
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &UploadHandler{validator: validator, ingester: ingester, maxFiles: maxFiles, logger: logger}
}

func (h *UploadHandler) RegisterRoutes(r chi.Router) {
	r.Post("/uploads", h.Upload)
}

type uploadResponse struct {
	Summary ingest.Summary       `json:"summary"`
	Files   []ingest.FileOutcome `json:"files"`
}

// Upload 解析 multipart 中重复的 files 字段，校验后按顺序入库。
// 部分文件失败时仍返回 200，逐文件结果在响应体中。
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	maxBody := int64(h.maxFiles+1)*h.validator.MaxSize + multipartMemoryBudget
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	defer r.Body.Close()

	if err := r.ParseMultipartForm(multipartMemoryBudget); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload exceeds size limit")
			return
		}
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid multipart form: %v", err))
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		headers = r.MultipartForm.File["file"]
	}
	if len(headers) == 0 {
		writeError(w, http.StatusBadRequest, "no files selected")
		return
	}
	if len(headers) > h.maxFiles {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("at most %d files per upload", h.maxFiles))
		return
	}

	batch := make([]ingest.Candidate, 0, len(headers))
	for _, fh := range headers {
		batch = append(batch, candidateFromHeader(fh))
	}

	admitted, rejected := h.validator.Admit(batch)
	if len(admitted) == 0 {
		summary := ingest.Summarize(ingest.Outcome{Rejected: rejected})
		writeJSON(w, http.StatusBadRequest, struct {
			Error string `json:"error"`
			Data  any    `json:"data"`
		}{"no valid files to upload", uploadResponse{Summary: summary, Files: []ingest.FileOutcome{}}})
		return
	}

	outcome, err := h.ingester.Ingest(r.Context(), admitted)
	if err != nil {
		switch {
		case errors.Is(err, ingest.ErrUnreachable):
			writeError(w, http.StatusServiceUnavailable, "storage backend is unreachable, try again later")
		case errors.Is(err, ingest.ErrStoreNotReady):
			writeError(w, http.StatusServiceUnavailable, "storage bucket is not set up")
		case errors.Is(err, ingest.ErrEmptyBatch):
			writeError(w, http.StatusBadRequest, "no files selected")
		default:
			h.logger.Error("ingest failed", "error", err)
			writeError(w, http.StatusInternalServerError, "upload failed")
		}
		return
	}
	outcome.Rejected = rejected

	writeJSON(w, http.StatusOK, envelope{Data: uploadResponse{
		Summary: ingest.Summarize(outcome),
		Files:   outcome.Files,
	}})
}

func candidateFromHeader(fh *multipart.FileHeader) ingest.Candidate {
	return ingest.Candidate{
		Name:     fh.Filename,
		Size:     fh.Size,
		MimeType: resolveMimeType(fh),
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

// resolveMimeType 优先使用客户端声明的类型，缺失时读取前 512 字节探测。
func resolveMimeType(fh *multipart.FileHeader) string {
	if value := fh.Header.Get("Content-Type"); value != "" {
		return value
	}

	f, err := fh.Open()
	if err != nil {
		return "application/octet-stream"
	}
	defer f.Close()

	buf := make([]byte, 512)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "application/octet-stream"
	}
	if n == 0 {
		return "application/octet-stream"
	}
	return http.DetectContentType(buf[:n])
}
