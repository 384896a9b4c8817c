package domain

// KernelStats — моментальный снимок состояния ядра для дашборда Console API.
// Собирается на лету из компонентов, нигде не персистится.
type KernelStats struct {
	Agents    AgentStats    `json:"agents"`
	Approvals ApprovalStats `json:"approvals"`
	Bus       BusStats      `json:"bus"`
	Contexts  ContextStats  `json:"contexts"`
	Audit     AuditStats    `json:"audit"`
}

type AgentStats struct {
	Total    int            `json:"total"`
	ByStatus map[string]int `json:"by_status"`
	Groups   int            `json:"groups"`
}

type ApprovalStats struct {
	Pending int `json:"pending"`
}

type BusStats struct {
	Queued      int   `json:"queued"`      // Суммарная глубина очередей
	Subscribers int   `json:"subscribers"` // Подписчики broadcast
	Dropped     int64 `json:"dropped"`     // Отброшено по backpressure
	InFlight    int   `json:"in_flight"`   // Ожидающие корреляции
}

type ContextStats struct {
	Cached int `json:"cached"` // Записей в L1 (RAM)
}

type AuditStats struct {
	Entries int `json:"entries"`
}
