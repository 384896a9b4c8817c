package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/xela07ax/helpdesk-agent-core/internal/console/service"
	"github.com/xela07ax/helpdesk-agent-core/internal/domain"
)

type AuditHandler struct {
	service *service.KernelService
}

func NewAuditHandler(s *service.KernelService) *AuditHandler {
	return &AuditHandler{service: s}
}

// GetLogs возвращает журнал аудита с поддержкой фильтрации
// GET /v1/audit?agent_id=...&kind=...&limit=...
func (h *AuditHandler) GetLogs(w http.ResponseWriter, r *http.Request) {
	// Извлекаем фильтры из Query-параметров
	agentID := r.URL.Query().Get("agent_id")
	kind := domain.ActionKind(r.URL.Query().Get("kind"))

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			http.Error(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	logs := h.service.FetchAudit(agentID, kind, limit)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(logs)
}
