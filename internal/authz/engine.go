package authz

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xela07ax/helpdesk-agent-core/internal/audit"
	"github.com/xela07ax/helpdesk-agent-core/internal/domain"
	"github.com/xela07ax/helpdesk-agent-core/internal/infra"
	"go.uber.org/zap"
)

// Engine — точка принятия решений (PDP) ядра координации.
// Держит реестр политик, ровно одну активную, очередь заявок HITL
// и пишет каждое решение в append-only журнал. Никогда не паникует:
// отсутствие политики/роли/вида действия — это всегда консервативный
// ответ (deny / требуется подтверждение), и он всегда попадает в аудит.
type Engine struct {
	mu       sync.RWMutex
	policies map[string]*domain.Policy
	activeID string
	pending  map[string]*domain.PendingApproval

	trail   *audit.Trail
	metrics *infra.Metrics
	logger  *zap.Logger
}

// New собирает движок и ровно один раз устанавливает дефолтную политику.
// Дефолт перекрывается обычным путем: RegisterPolicy + SetActivePolicy.
func New(trail *audit.Trail, metrics *infra.Metrics, logger *zap.Logger) *Engine {
	e := &Engine{
		policies: make(map[string]*domain.Policy),
		pending:  make(map[string]*domain.PendingApproval),
		trail:    trail,
		metrics:  metrics,
		logger:   logger.Named("authz"),
	}

	def := defaultPolicy()
	e.policies[def.ID] = def
	e.activeID = def.ID
	e.logger.Info("default policy installed", zap.String("policy_id", def.ID))
	return e
}

// defaultPolicy: admin — полный доступ ко всему; analyst — execute ко всему,
// но автономные действия только через подтверждение; user — только чтение.
// Таблица Approvals заполняется полностью: отсутствие записи трактуется
// как "требуется подтверждение", поэтому явные false обязательны.
func defaultPolicy() *domain.Policy {
	p := &domain.Policy{
		ID:          uuid.New().String(),
		Name:        "default",
		Description: "Built-in baseline: admin/analyst/user",
		Rules:       make(map[domain.RuleKey]domain.PermissionLevel),
		Approvals:   make(map[domain.RuleKey]bool),
		CreatedAt:   time.Now(),
	}

	for _, kind := range domain.ActionKinds {
		p.Rules[domain.RuleKey{Role: "admin", Kind: kind}] = domain.PermissionAdmin
		p.Rules[domain.RuleKey{Role: "analyst", Kind: kind}] = domain.PermissionExecute
		p.Rules[domain.RuleKey{Role: "user", Kind: kind}] = domain.PermissionRead

		p.Approvals[domain.RuleKey{Role: "admin", Kind: kind}] = false
		p.Approvals[domain.RuleKey{Role: "analyst", Kind: kind}] = kind == domain.ActionAutonomous
		p.Approvals[domain.RuleKey{Role: "user", Kind: kind}] = false
	}
	return p
}

// RegisterPolicy кладет политику в реестр (ID выдается, если не задан).
// Регистрация не активирует: активная политика меняется только SetActivePolicy.
func (e *Engine) RegisterPolicy(p domain.Policy) string {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}

	e.mu.Lock()
	e.policies[p.ID] = &p
	e.mu.Unlock()

	e.logger.Info("policy registered", zap.String("policy_id", p.ID), zap.String("name", p.Name))
	return p.ID
}

// SetActivePolicy переключает активную политику. false — ID неизвестен.
func (e *Engine) SetActivePolicy(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.policies[id]; !ok {
		e.logger.Warn("set active: unknown policy", zap.String("policy_id", id))
		return false
	}
	e.activeID = id
	e.logger.Info("active policy switched", zap.String("policy_id", id))
	return true
}

// GetActivePolicy возвращает копию активной политики (мапы правил скопированы:
// снаружи таблицы не мутируются). false — активной политики нет.
func (e *Engine) GetActivePolicy() (domain.Policy, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	p, ok := e.policies[e.activeID]
	if !ok {
		return domain.Policy{}, false
	}
	return clonePolicy(p), true
}

// ListPolicies — копии всех зарегистрированных политик (для Console API)
func (e *Engine) ListPolicies() []domain.Policy {
	e.mu.RLock()
	defer e.mu.RUnlock()

	result := make([]domain.Policy, 0, len(e.policies))
	for _, p := range e.policies {
		result = append(result, clonePolicy(p))
	}
	return result
}

// ActivePolicyID — ID активной политики ("" — нет активной)
func (e *Engine) ActivePolicyID() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.activeID
}

// CheckPermission — решение "можно/нельзя" для (роль, вид действия, требуемый уровень).
// Разрешено тогда и только тогда, когда в активной политике есть правило для
// (role, kind) и его уровень >= required. КАЖДЫЙ вызов — ровно одна запись в аудит,
// независимо от исхода.
func (e *Engine) CheckPermission(agentID, role string, kind domain.ActionKind, required domain.PermissionLevel) bool {
	e.mu.RLock()
	active := e.policies[e.activeID]
	e.mu.RUnlock()

	granted := false
	reason := "ok"

	switch {
	case active == nil:
		reason = "no_active_policy"
	case !active.Allows(role, kind, required):
		// Различать "нет правила" и "уровень ниже" для аудита полезно,
		// но на решение это не влияет: оба случая — deny
		if _, hasRule := active.Rules[domain.RuleKey{Role: role, Kind: kind}]; !hasRule {
			reason = "no_rule"
		} else {
			reason = "insufficient_level"
		}
	default:
		granted = true
	}

	e.trail.Append(domain.AuditEntry{
		AgentID:  agentID,
		Kind:     kind,
		Approved: granted,
		Details: map[string]interface{}{
			"decision": "permission_check",
			"role":     role,
			"required": required.String(),
			"reason":   reason,
		},
	})

	if !granted {
		e.metrics.PermissionDenied.Inc()
		e.logger.Debug("permission denied",
			zap.String("agent_id", agentID),
			zap.String("role", role),
			zap.String("kind", string(kind)),
			zap.String("reason", reason))
	}
	return granted
}

// RequiresApproval — нужен ли человек в контуре для (роль, вид действия).
// Отсутствие активной политики или записи в таблице — true (Fail Safe).
// В аудит не пишет: это справка, а не решение.
func (e *Engine) RequiresApproval(role string, kind domain.ActionKind) bool {
	e.mu.RLock()
	active := e.policies[e.activeID]
	e.mu.RUnlock()

	return active.NeedsApproval(role, kind)
}

func clonePolicy(p *domain.Policy) domain.Policy {
	cp := *p
	cp.Rules = make(map[domain.RuleKey]domain.PermissionLevel, len(p.Rules))
	for k, v := range p.Rules {
		cp.Rules[k] = v
	}
	cp.Approvals = make(map[domain.RuleKey]bool, len(p.Approvals))
	for k, v := range p.Approvals {
		cp.Approvals[k] = v
	}
	return cp
}
