package audit

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xela07ax/helpdesk-agent-core/internal/domain"
)

// Sink — необязательный отвод записей (например, батчевый архиватор в Postgres).
// Вызов обязан быть неблокирующим: Trail находится на Hot Path проверок прав.
type Sink interface {
	Log(entry domain.AuditEntry)
}

// Trail — авторитетный журнал решений ядра: только append, в памяти процесса.
// Записи не мутируются и не удаляются; пагинацией и архивацией занимаются
// вызывающие (Console API читает, Archiver сбрасывает в БД).
type Trail struct {
	mu      sync.RWMutex
	entries []domain.AuditEntry
	sink    Sink
}

func NewTrail(sink Sink) *Trail {
	return &Trail{
		entries: make([]domain.AuditEntry, 0, 256),
		sink:    sink,
	}
}

// Append дозаполняет ID/Timestamp и фиксирует запись.
// Возвращает итоговую запись (с проставленным ID) для удобства вызывающего.
func (t *Trail) Append(entry domain.AuditEntry) domain.AuditEntry {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	t.mu.Lock()
	t.entries = append(t.entries, entry)
	t.mu.Unlock()

	if t.sink != nil {
		t.sink.Log(entry)
	}
	return entry
}

// Len — текущий размер журнала
func (t *Trail) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// List возвращает копию хвоста журнала с фильтрацией по агенту и виду действия.
// limit <= 0 — без ограничения. Порядок — порядок добавления.
func (t *Trail) List(agentID string, kind domain.ActionKind, limit int) []domain.AuditEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	// Инициализируем пустой слайс, чтобы в JSON был [] вместо null
	result := make([]domain.AuditEntry, 0)
	for _, e := range t.entries {
		if agentID != "" && e.AgentID != agentID {
			continue
		}
		if kind != "" && e.Kind != kind {
			continue
		}
		result = append(result, e)
	}

	if limit > 0 && len(result) > limit {
		result = result[len(result)-limit:]
	}
	return result
}
