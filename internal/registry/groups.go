package registry

import (
	"time"

	"github.com/xela07ax/helpdesk-agent-core/internal/domain"
	"go.uber.org/zap"
)

// CreateGroup заводит именованную группу. Неизвестные ID из initialIDs
// отфильтровываются с Warn — частично валидный список не повод падать.
// false — группа с таким ID уже существует.
func (r *Registry) CreateGroup(groupID string, initialIDs ...string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.groups[groupID]; exists {
		r.logger.Warn("group already exists", zap.String("group_id", groupID))
		return false
	}

	members := make([]string, 0, len(initialIDs))
	for _, id := range initialIDs {
		if _, ok := r.agents[id]; !ok {
			r.logger.Warn("group init: unknown agent skipped",
				zap.String("group_id", groupID),
				zap.String("agent_id", id))
			continue
		}
		members = append(members, id)
	}

	r.groups[groupID] = &domain.AgentGroup{
		ID:        groupID,
		AgentIDs:  members,
		CreatedAt: time.Now(),
	}
	return true
}

// AddToGroup добавляет агента в группу. false — группа или агент неизвестны.
// Повторное добавление — no-op (порядок членства сохраняется).
func (r *Registry) AddToGroup(groupID, agentID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	group, ok := r.groups[groupID]
	if !ok {
		r.logger.Warn("add to group: unknown group", zap.String("group_id", groupID))
		return false
	}
	if _, ok := r.agents[agentID]; !ok {
		r.logger.Warn("add to group: unknown agent",
			zap.String("group_id", groupID),
			zap.String("agent_id", agentID))
		return false
	}

	for _, id := range group.AgentIDs {
		if id == agentID {
			return true
		}
	}
	group.AgentIDs = append(group.AgentIDs, agentID)
	return true
}

// RemoveFromGroup убирает агента из группы (сам агент остается в реестре)
func (r *Registry) RemoveFromGroup(groupID, agentID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	group, ok := r.groups[groupID]
	if !ok {
		r.logger.Warn("remove from group: unknown group", zap.String("group_id", groupID))
		return false
	}

	before := len(group.AgentIDs)
	group.AgentIDs = removeID(group.AgentIDs, agentID)
	return len(group.AgentIDs) != before
}

// ListInGroup — копии агентов группы в порядке членства.
// Пустой слайс — группа неизвестна или пуста.
func (r *Registry) ListInGroup(groupID string) []domain.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Agent, 0)
	group, ok := r.groups[groupID]
	if !ok {
		r.logger.Warn("list in group: unknown group", zap.String("group_id", groupID))
		return result
	}

	for _, id := range group.AgentIDs {
		if a, ok := r.agents[id]; ok {
			result = append(result, cloneAgent(a))
		}
	}
	return result
}
