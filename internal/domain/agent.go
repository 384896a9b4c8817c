package domain

import "time"

// Рекомендуемые значения статуса. Поле Status намеренно оставлено свободной строкой:
// оркестратор может вводить свои состояния, ядро их не интерпретирует.
const (
	AgentStatusIdle    = "idle"
	AgentStatusBusy    = "busy"
	AgentStatusOffline = "offline"
)

// Agent — живая идентичность агента в Control Plane.
// Мутации только через методы реестра (internal/registry).
type Agent struct {
	ID   string `json:"id"`   // UUID, выдается при регистрации
	Name string `json:"name"` // Человекочитаемое имя (например, "Billing-Helper-Bot")
	Role string `json:"role"` // Свободная строка: "admin", "analyst", "user", ...

	// Capabilities — множество умений агента (уникальные строки, порядок не важен).
	// Например: "erp.invoice.read", "inbox.reply.draft"
	Capabilities []string `json:"capabilities"`

	Status string `json:"status"` // Текущее состояние ("idle"/"busy"/...)

	// Метаданные для Observability (версия, окружение и т.д.)
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasCapability — линейный поиск: списки умений короткие, индекс не нужен.
func (a *Agent) HasCapability(cap string) bool {
	for _, c := range a.Capabilities {
		if c == cap {
			return true
		}
	}
	return false
}

// AgentGroup — именованная упорядоченная коллекция ID агентов.
// Группа не владеет агентами (слабая ссылка по ID): удаление агента
// каскадно вычищает его из всех групп, но не наоборот.
type AgentGroup struct {
	ID        string    `json:"id"`
	AgentIDs  []string  `json:"agent_ids"`
	CreatedAt time.Time `json:"created_at"`
}
