package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/xela07ax/helpdesk-agent-core/internal/audit"
	"github.com/xela07ax/helpdesk-agent-core/internal/authz"
	"github.com/xela07ax/helpdesk-agent-core/internal/bus"
	"github.com/xela07ax/helpdesk-agent-core/internal/contexts"
	"github.com/xela07ax/helpdesk-agent-core/internal/domain"
	"github.com/xela07ax/helpdesk-agent-core/internal/registry"
	"go.uber.org/zap"
)

// KernelService — фасад ядра для Console API. Хэндлеры не трогают компоненты
// напрямую: вся трансляция HTTP-запросов в операции ядра собрана здесь.
type KernelService struct {
	reg    *registry.Registry
	engine *authz.Engine
	bus    *bus.Bus
	store  *contexts.Store
	trail  *audit.Trail
	logger *zap.Logger
}

func NewKernelService(
	reg *registry.Registry,
	engine *authz.Engine,
	b *bus.Bus,
	store *contexts.Store,
	trail *audit.Trail,
	logger *zap.Logger,
) *KernelService {
	return &KernelService{
		reg:    reg,
		engine: engine,
		bus:    b,
		store:  store,
		trail:  trail,
		logger: logger.Named("kernel-service"),
	}
}

// --- Агенты ---

func (s *KernelService) ListAgents() []domain.Agent {
	return s.reg.ListAll()
}

func (s *KernelService) GetAgent(id string) (domain.Agent, bool) {
	return s.reg.Get(id)
}

// SetAgentStatus меняет статус агента и транслирует сигнал остальным
// инстансам через Redis Pub/Sub (если он сконфигурирован).
func (s *KernelService) SetAgentStatus(id, status string) error {
	if status == "" {
		return fmt.Errorf("status is required")
	}
	if !s.reg.UpdateStatus(id, status) {
		return fmt.Errorf("agent %s not found", id)
	}
	s.logger.Info("agent status updated via console",
		zap.String("agent_id", id),
		zap.String("new_status", status))
	return nil
}

// --- Human-in-the-loop ---

// ListApprovals отдает очередь запросов на подтверждение. Ядро хранит только
// живую очередь (PENDING): решенные запросы ищутся в аудите, не здесь.
func (s *KernelService) ListApprovals(status string) ([]domain.PendingApproval, error) {
	status = strings.ToUpper(status)
	if status != "" && status != string(domain.ApprovalPending) {
		return nil, fmt.Errorf("only %s approvals are queryable, decided ones live in the audit trail", domain.ApprovalPending)
	}
	return s.engine.ListPending(), nil
}

func (s *KernelService) GetApproval(id string) (domain.PendingApproval, bool) {
	return s.engine.GetPending(id)
}

// DecideApproval фиксирует решение оператора. reviewerID обязателен для
// подотчетности: он попадет в запись аудита как approver_id.
func (s *KernelService) DecideApproval(id string, approved bool, reviewerID, comment string) error {
	var ok bool
	if approved {
		ok = s.engine.Approve(id, reviewerID)
	} else {
		ok = s.engine.Deny(id, reviewerID, comment)
	}
	if !ok {
		return fmt.Errorf("approval %s not found or already decided", id)
	}

	s.logger.Info("HITL decision processed",
		zap.String("request_id", id),
		zap.String("reviewer", reviewerID),
		zap.Bool("approved", approved))
	return nil
}

// --- Политики ---

func (s *KernelService) ListPolicies() []domain.Policy {
	return s.engine.ListPolicies()
}

func (s *KernelService) ActivePolicyID() string {
	return s.engine.ActivePolicyID()
}

func (s *KernelService) RegisterPolicy(p domain.Policy) string {
	return s.engine.RegisterPolicy(p)
}

func (s *KernelService) ActivatePolicy(id string) error {
	if !s.engine.SetActivePolicy(id) {
		return fmt.Errorf("policy %s not registered", id)
	}
	return nil
}

// --- Аудит ---

func (s *KernelService) FetchAudit(agentID string, kind domain.ActionKind, limit int) []domain.AuditEntry {
	return s.trail.List(agentID, kind, limit)
}

// --- Контексты ---

func (s *KernelService) ListContexts(ctx context.Context, ownerID string, typ domain.ContextType) ([]domain.Context, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("owner is required")
	}
	return s.store.ListByOwner(ctx, ownerID, typ), nil
}

// --- Дашборд ---

// Stats собирает моментальный снимок ядра. Все источники отвечают из памяти,
// запрос дешевый — кэшировать нечего.
func (s *KernelService) Stats() domain.KernelStats {
	return domain.KernelStats{
		Agents:    s.reg.Stats(),
		Approvals: domain.ApprovalStats{Pending: s.engine.PendingCount()},
		Bus:       s.bus.Stats(),
		Contexts:  domain.ContextStats{Cached: s.store.CacheSize()},
		Audit:     domain.AuditStats{Entries: s.trail.Len()},
	}
}
