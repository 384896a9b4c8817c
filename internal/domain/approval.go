package domain

import (
	"errors"
	"time"
)

// Статусы State Machine заявки на подтверждение
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "PENDING"
	ApprovalApproved ApprovalStatus = "APPROVED"
	ApprovalRejected ApprovalStatus = "REJECTED"
)

var (
	ErrInvalidTransition = errors.New("invalid approval status transition")
	ErrAlreadyProcessed  = errors.New("approval request already processed")
)

// DecisionCallback вызывается синхронно в момент решения оператора.
// approved=true при Approve, false при Deny.
type DecisionCallback func(approved bool)

// PendingApproval — заявка Human-in-the-loop: агент хочет выполнить действие,
// политика требует подтверждения. Создается requestApproval, потребляется
// (и удаляется) решением approve/deny.
type PendingApproval struct {
	ID      string     `json:"id"`
	AgentID string     `json:"agent_id"`
	Role    string     `json:"role"`
	Kind    ActionKind `json:"kind"`

	// Details — что именно агент хотел сделать (payload для ревьюера)
	Details map[string]interface{} `json:"details,omitempty"`

	Status    ApprovalStatus `json:"status"`
	CreatedAt time.Time      `json:"created_at"`

	// OnDecision не сериализуется: колбэк живет только внутри процесса
	OnDecision DecisionCallback `json:"-"`
}

// CanTransitionTo проверяет правила конечного автомата
func (p *PendingApproval) CanTransitionTo(next ApprovalStatus) error {
	if p.Status != ApprovalPending {
		return ErrAlreadyProcessed
	}
	if next == ApprovalPending {
		return ErrInvalidTransition
	}
	return nil
}
