package api

import (
	"net/http"

	"fileshelf/internal/ingest"
	"fileshelf/internal/service"
)

// StatusHandler 报告连接状态与引导状态。
type StatusHandler struct {
	files *service.FileService
	gate  ingest.Gate
}

func NewStatusHandler(files *service.FileService, gate ingest.Gate) *StatusHandler {
	return &StatusHandler{files: files, gate: gate}
}

type statusResponse struct {
	Reachable bool `json:"reachable"`
	service.StoreStatus
}

func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Reachable:   h.gate == nil || h.gate.IsReachable(),
		StoreStatus: h.files.Status(r.Context()),
	}
	writeJSON(w, http.StatusOK, envelope{Data: resp})
}
