package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/xela07ax/helpdesk-agent-core/internal/console/service"
	"github.com/xela07ax/helpdesk-agent-core/internal/domain"
)

type PolicyHandler struct {
	service *service.KernelService
}

func NewPolicyHandler(s *service.KernelService) *PolicyHandler {
	return &PolicyHandler{service: s}
}

// List возвращает все зарегистрированные политики плюс ID активной
func (h *PolicyHandler) List(w http.ResponseWriter, r *http.Request) {
	resp := struct {
		ActiveID string          `json:"active_id"`
		Policies []domain.Policy `json:"policies"`
	}{
		ActiveID: h.service.ActivePolicyID(),
		Policies: h.service.ListPolicies(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// Таблицы политики ключуются структурой (role, kind) и в JSON не сериализуются,
// поэтому API принимает правила плоским списком
type policyRule struct {
	Role             string `json:"role"`
	Kind             string `json:"kind"`
	Level            string `json:"level"` // read/execute/write/admin
	RequiresApproval bool   `json:"requires_approval"`
}

type createPolicyRequest struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Rules       []policyRule `json:"rules"`
}

var permissionLevels = map[string]domain.PermissionLevel{
	"read":    domain.PermissionRead,
	"execute": domain.PermissionExecute,
	"write":   domain.PermissionWrite,
	"admin":   domain.PermissionAdmin,
}

// Create регистрирует новую политику. Активной она станет только после
// явного POST /v1/policies/{id}/activate — атомарная подмена без окна.
func (h *PolicyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createPolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	p := domain.Policy{
		Name:        req.Name,
		Description: req.Description,
		Rules:       make(map[domain.RuleKey]domain.PermissionLevel, len(req.Rules)),
		Approvals:   make(map[domain.RuleKey]bool, len(req.Rules)),
	}
	for _, rule := range req.Rules {
		kind := domain.ActionKind(rule.Kind)
		if !kind.Valid() {
			http.Error(w, "unknown action kind: "+rule.Kind, http.StatusBadRequest)
			return
		}
		level, ok := permissionLevels[rule.Level]
		if !ok {
			http.Error(w, "unknown permission level: "+rule.Level, http.StatusBadRequest)
			return
		}
		key := domain.RuleKey{Role: rule.Role, Kind: kind}
		p.Rules[key] = level
		p.Approvals[key] = rule.RequiresApproval
	}

	id := h.service.RegisterPolicy(p)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{"id": id})
}

// Activate атомарно делает политику активной
// POST /v1/policies/{id}/activate
func (h *PolicyHandler) Activate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "Policy ID is required", http.StatusBadRequest)
		return
	}

	if err := h.service.ActivatePolicy(id); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
