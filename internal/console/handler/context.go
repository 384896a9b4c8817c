package handler

import (
	"encoding/json"
	"net/http"

	"github.com/xela07ax/helpdesk-agent-core/internal/console/service"
	"github.com/xela07ax/helpdesk-agent-core/internal/domain"
)

type ContextHandler struct {
	service *service.KernelService
}

func NewContextHandler(s *service.KernelService) *ContextHandler {
	return &ContextHandler{service: s}
}

// List возвращает живые контексты владельца
// GET /v1/contexts?owner=...&type=...
func (h *ContextHandler) List(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("owner")
	typ := domain.ContextType(r.URL.Query().Get("type"))

	records, err := h.service.ListContexts(r.Context(), owner, typ)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(records)
}
