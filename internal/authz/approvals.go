package authz

import (
	"time"

	"github.com/google/uuid"
	"github.com/xela07ax/helpdesk-agent-core/internal/domain"
	"go.uber.org/zap"
)

// RequestApproval заводит заявку Human-in-the-loop и возвращает ее ID.
// onDecision (опционально) будет вызван синхронно в момент решения —
// ровно один раз, потому что решение удаляет заявку из очереди.
func (e *Engine) RequestApproval(agentID, role string, kind domain.ActionKind, details map[string]interface{}, onDecision domain.DecisionCallback) string {
	req := &domain.PendingApproval{
		ID:         uuid.New().String(),
		AgentID:    agentID,
		Role:       role,
		Kind:       kind,
		Details:    details,
		Status:     domain.ApprovalPending,
		CreatedAt:  time.Now(),
		OnDecision: onDecision,
	}

	e.mu.Lock()
	e.pending[req.ID] = req
	e.mu.Unlock()

	e.logger.Info("approval requested",
		zap.String("request_id", req.ID),
		zap.String("agent_id", agentID),
		zap.String("kind", string(kind)))
	return req.ID
}

// Approve фиксирует положительное решение оператора.
func (e *Engine) Approve(requestID, approverID string) bool {
	return e.decide(requestID, approverID, "", true)
}

// Deny фиксирует отказ (reason — для аудита и ревьюера).
func (e *Engine) Deny(requestID, approverID, reason string) bool {
	return e.decide(requestID, approverID, reason, false)
}

// decide — единый путь решения: снять заявку, записать аудит, дернуть колбэк.
// Порядок важен: заявка удаляется до колбэка, чтобы повторное решение по тому же
// ID гарантированно вернуло false (Double Decision невозможен).
func (e *Engine) decide(requestID, approverID, reason string, approved bool) bool {
	e.mu.Lock()
	req, ok := e.pending[requestID]
	if ok {
		delete(e.pending, requestID)
	}
	e.mu.Unlock()

	if !ok {
		e.logger.Warn("decision on unknown approval request", zap.String("request_id", requestID))
		return false
	}

	details := map[string]interface{}{
		"decision":   "approval",
		"role":       req.Role,
		"request_id": req.ID,
	}
	if reason != "" {
		details["reason"] = reason
	}

	e.trail.Append(domain.AuditEntry{
		AgentID:    req.AgentID,
		Kind:       req.Kind,
		Approved:   approved,
		ApproverID: approverID,
		Details:    details,
	})

	e.logger.Info("approval decided",
		zap.String("request_id", req.ID),
		zap.String("approver_id", approverID),
		zap.Bool("approved", approved))

	// Синхронный вызов: к моменту возврата Approve/Deny вызывающий
	// может полагаться на то, что колбэк уже отработал
	if req.OnDecision != nil {
		req.OnDecision(approved)
	}
	return true
}

// GetPending возвращает копию заявки. false — ID неизвестен (или уже решена).
func (e *Engine) GetPending(requestID string) (domain.PendingApproval, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	req, ok := e.pending[requestID]
	if !ok {
		return domain.PendingApproval{}, false
	}
	return *req, true
}

// ListPending — очередь заявок для Console API (Decision Queue)
func (e *Engine) ListPending() []domain.PendingApproval {
	e.mu.RLock()
	defer e.mu.RUnlock()

	result := make([]domain.PendingApproval, 0, len(e.pending))
	for _, req := range e.pending {
		result = append(result, *req)
	}
	return result
}

// PendingCount — размер очереди (для дашборда)
func (e *Engine) PendingCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.pending)
}
