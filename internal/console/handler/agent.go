package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/xela07ax/helpdesk-agent-core/internal/console/service"
)

type AgentHandler struct {
	service *service.KernelService
}

func NewAgentHandler(s *service.KernelService) *AgentHandler {
	return &AgentHandler{service: s}
}

// List возвращает всех зарегистрированных агентов.
// Используется для отображения основной таблицы в Console API.
func (h *AgentHandler) List(w http.ResponseWriter, r *http.Request) {
	agents := h.service.ListAgents()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(agents)
}

func (h *AgentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	agent, ok := h.service.GetAgent(id)
	if !ok {
		http.Error(w, "agent not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(agent)
}

type setStatusRequest struct {
	Status string `json:"status"`
}

// SetStatus переключает статус агента (idle/busy/offline и любые доменные).
// POST /v1/agents/{id}/status
func (h *AgentHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req setStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.service.SetAgentStatus(id, req.Status); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
