package domain

import "time"

// AuditEntry — неизменяемая запись журнала решений.
// Только append: записи никогда не мутируются и не удаляются,
// журнал копится все время жизни процесса (архивацией занимается внешний слой).
type AuditEntry struct {
	ID      string     `json:"id"` // UUID события
	AgentID string     `json:"agent_id"`
	Kind    ActionKind `json:"kind"`

	// Details — свободная карта: роль, требуемый уровень, причина отказа и т.д.
	Details map[string]interface{} `json:"details,omitempty"`

	// Approved — итог решения (permission granted / approval approved)
	Approved bool `json:"approved"`

	// ApproverID заполнен только для решений HITL (кто нажал кнопку)
	ApproverID string `json:"approver_id,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}
