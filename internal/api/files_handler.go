package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"fileshelf/internal/repository"
	"fileshelf/internal/service"
	"fileshelf/internal/storage"

	"github.com/go-chi/chi/v5"
)

// FileHandler 提供文件列表、下载与删除端点。
type FileHandler struct {
	service *service.FileService
	logger  *slog.Logger
}

func NewFileHandler(s *service.FileService, logger *slog.Logger) *FileHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileHandler{service: s, logger: logger}
}

// RegisterRoutes 注册公开的只读端点。
func (h *FileHandler) RegisterRoutes(r chi.Router) {
	r.Route("/files", func(r chi.Router) {
		r.Get("/", h.ListFiles)
		r.Get("/{id}", h.GetFile)
		r.Get("/{id}/download", h.DownloadFile)
	})
}

// RegisterAdminRoutes 注册需要管理员权限的端点。
func (h *FileHandler) RegisterAdminRoutes(r chi.Router) {
	r.Delete("/files/{id}", h.DeleteFile)
}

type envelope struct {
	Data any `json:"data"`
}

type errorEnvelope struct {
	Error string `json:"error"`
}

// ListFiles 返回全部文件，最新上传的在前。
func (h *FileHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	files, err := h.service.ListFiles(r.Context())
	if err != nil {
		h.logger.Error("list files failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list files")
		return
	}
	writeJSON(w, http.StatusOK, envelope{Data: files})
}

// GetFile 返回单个文件的元数据。
func (h *FileHandler) GetFile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "file id is required")
		return
	}

	file, err := h.service.GetFile(r.Context(), id)
	if err != nil {
		h.writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Data: file})
}

// DownloadFile 以附件形式返回文件内容。
func (h *FileHandler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "file id is required")
		return
	}

	file, content, err := h.service.OpenFile(r.Context(), id)
	if err != nil {
		h.writeLookupError(w, err)
		return
	}
	defer content.Close()

	contentType := file.Type
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", attachmentDisposition(file.Name))
	w.Header().Set("Content-Length", strconv.FormatInt(file.Size, 10))

	if _, err := io.Copy(w, content); err != nil {
		// 客户端可能已断开，无法再写入错误响应
		h.logger.Debug("download interrupted", "id", id, "error", err)
	}
}

// DeleteFile 先删除对象再删除记录。
func (h *FileHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "file id is required")
		return
	}

	if err := h.service.DeleteFile(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "file not found")
			return
		}
		h.logger.Error("delete file failed", "id", id, "error", err)
		writeError(w, http.StatusBadGateway, "failed to delete file")
		return
	}

	writeJSON(w, http.StatusOK, envelope{Data: map[string]any{"id": id, "deleted": true}})
}

func (h *FileHandler) writeLookupError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "file not found")
	case errors.Is(err, storage.ErrObjectNotFound):
		// 记录存在但对象缺失，违反了一致性约束
		h.logger.Error("object missing for record", "error", err)
		writeError(w, http.StatusNotFound, "file content not found")
	default:
		h.logger.Error("file lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load file")
	}
}

// attachmentDisposition 按 RFC 6266 生成下载头，非 ASCII 文件名使用 filename* 编码。
func attachmentDisposition(name string) string {
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": name}); v != "" {
		return v
	}
	return "attachment"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorEnvelope{Error: message})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
