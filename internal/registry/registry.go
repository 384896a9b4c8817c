package registry

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xela07ax/helpdesk-agent-core/internal/domain"
	"go.uber.org/zap"
)

// StatusPublisher транслирует смену статуса другим инстансам ядра (Redis Pub/Sub).
// Необязателен: без него реестр работает чисто локально.
type StatusPublisher interface {
	PublishStatus(agentID, status string)
}

// Registry — источник правды о живых агентах и их группах.
// Все мапы принадлежат исключительно реестру и мутируются только через его методы.
// Ни одна операция не фатальна: неизвестный ID — это false/пустой результат и Warn в лог.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]*domain.Agent
	groups map[string]*domain.AgentGroup

	publisher StatusPublisher
	logger    *zap.Logger
}

func New(logger *zap.Logger, publisher StatusPublisher) *Registry {
	return &Registry{
		agents:    make(map[string]*domain.Agent),
		groups:    make(map[string]*domain.AgentGroup),
		publisher: publisher,
		logger:    logger.Named("registry"),
	}
}

// Register заводит агента и выдает ему ID. Переданный объект копируется:
// снаружи никто не держит ссылку на внутреннее состояние реестра.
func (r *Registry) Register(agent domain.Agent) string {
	agent.ID = uuid.New().String()
	agent.Capabilities = dedupe(agent.Capabilities)
	if agent.Status == "" {
		agent.Status = domain.AgentStatusIdle
	}
	now := time.Now()
	agent.CreatedAt = now
	agent.UpdatedAt = now

	r.mu.Lock()
	r.agents[agent.ID] = &agent
	r.mu.Unlock()

	r.logger.Info("agent registered",
		zap.String("agent_id", agent.ID),
		zap.String("name", agent.Name),
		zap.String("role", agent.Role))
	return agent.ID
}

// Get возвращает копию агента. false — ID неизвестен.
func (r *Registry) Get(id string) (domain.Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	agent, ok := r.agents[id]
	if !ok {
		return domain.Agent{}, false
	}
	return cloneAgent(agent), true
}

// Remove удаляет агента и каскадно вычищает его ID из всех групп.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.agents[id]; !ok {
		r.logger.Warn("remove: unknown agent", zap.String("agent_id", id))
		return false
	}
	delete(r.agents, id)

	for _, g := range r.groups {
		g.AgentIDs = removeID(g.AgentIDs, id)
	}

	r.logger.Info("agent removed", zap.String("agent_id", id))
	return true
}

// UpdateStatus меняет статус и, при наличии паблишера, транслирует сигнал
// остальным инстансам. false — агент неизвестен.
func (r *Registry) UpdateStatus(id, status string) bool {
	if !r.applyStatus(id, status) {
		return false
	}
	if r.publisher != nil {
		r.publisher.PublishStatus(id, status)
	}
	return true
}

// ApplyStatus — локальное применение статуса без ретрансляции.
// Используется слушателем сигналов, чтобы не зациклить Pub/Sub.
func (r *Registry) ApplyStatus(id, status string) bool {
	return r.applyStatus(id, status)
}

func (r *Registry) applyStatus(id, status string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	agent, ok := r.agents[id]
	if !ok {
		r.logger.Warn("status update: unknown agent", zap.String("agent_id", id))
		return false
	}
	agent.Status = status
	agent.UpdatedAt = time.Now()
	return true
}

// ListAll — копии всех агентов, отсортированные по времени регистрации
func (r *Registry) ListAll() []domain.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Agent, 0, len(r.agents))
	for _, a := range r.agents {
		result = append(result, cloneAgent(a))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result
}

// ListByRole — все агенты с данной ролью
func (r *Registry) ListByRole(role string) []domain.Agent {
	return r.listWhere(func(a *domain.Agent) bool { return a.Role == role })
}

// ListByCapability — все агенты, умеющие cap
func (r *Registry) ListByCapability(cap string) []domain.Agent {
	return r.listWhere(func(a *domain.Agent) bool { return a.HasCapability(cap) })
}

func (r *Registry) listWhere(match func(*domain.Agent) bool) []domain.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Agent, 0)
	for _, a := range r.agents {
		if match(a) {
			result = append(result, cloneAgent(a))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result
}

// Stats — снимок для дашборда консоли
func (r *Registry) Stats() domain.AgentStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byStatus := make(map[string]int)
	for _, a := range r.agents {
		byStatus[a.Status]++
	}
	return domain.AgentStats{
		Total:    len(r.agents),
		ByStatus: byStatus,
		Groups:   len(r.groups),
	}
}

func cloneAgent(a *domain.Agent) domain.Agent {
	cp := *a
	cp.Capabilities = append([]string(nil), a.Capabilities...)
	if a.Metadata != nil {
		meta := make(map[string]interface{}, len(a.Metadata))
		for k, v := range a.Metadata {
			meta[k] = v
		}
		cp.Metadata = meta
	}
	return cp
}

func dedupe(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	result := make([]string, 0, len(items))
	for _, s := range items {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		result = append(result, s)
	}
	return result
}

func removeID(ids []string, id string) []string {
	result := ids[:0]
	for _, x := range ids {
		if x != id {
			result = append(result, x)
		}
	}
	return result
}
