package handler

import (
	"encoding/json"
	"net/http"

	"github.com/xela07ax/helpdesk-agent-core/internal/domain"
)

// DashboardService Описываем, что нам нужно от сервиса
type DashboardService interface {
	Stats() domain.KernelStats
}

type DashboardHandler struct {
	service DashboardService
}

func NewDashboardHandler(s DashboardService) *DashboardHandler {
	return &DashboardHandler{service: s}
}

func (h *DashboardHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats := h.service.Stats()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}
