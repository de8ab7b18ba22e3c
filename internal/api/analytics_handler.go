package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"fileshelf/internal/analytics"
	"fileshelf/internal/middleware"
	"fileshelf/internal/repository"
)

// PageViewService 记录访问并生成统计。
type PageViewService interface {
	Record(ctx context.Context, in analytics.RecordInput) (*repository.PageView, error)
	Summary(ctx context.Context) (*repository.TrafficSummary, error)
}

type AnalyticsHandler struct {
	service PageViewService
	logger  *slog.Logger
}

func NewAnalyticsHandler(s PageViewService, logger *slog.Logger) *AnalyticsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalyticsHandler{service: s, logger: logger}
}

type pageViewRequest struct {
	VisitorID string `json:"visitor_id"`
	SessionID string `json:"session_id"`
	PagePath  string `json:"page_path"`
	Referrer  string `json:"referrer"`
}

// RecordPageView 保存客户端上报的访问，返回生成的访客与会话 ID 供客户端保存。
func (h *AnalyticsHandler) RecordPageView(w http.ResponseWriter, r *http.Request) {
	var req pageViewRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	view, err := h.service.Record(r.Context(), analytics.RecordInput{
		VisitorID: req.VisitorID,
		SessionID: req.SessionID,
		PagePath:  req.PagePath,
		Referrer:  req.Referrer,
		UserAgent: r.UserAgent(),
		IP:        middleware.ClientIP(r),
	})
	if err != nil {
		if errors.Is(err, analytics.ErrInvalidPageView) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("record page view failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to record page view")
		return
	}

	writeJSON(w, http.StatusCreated, envelope{Data: map[string]string{
		"visitor_id": view.VisitorID,
		"session_id": view.SessionID,
	}})
}

// Summary 返回统计面板数据。
func (h *AnalyticsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Summary(r.Context())
	if err != nil {
		h.logger.Error("traffic summary failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load analytics")
		return
	}
	writeJSON(w, http.StatusOK, envelope{Data: summary})
}
