package domain

import "time"

// ContextType — пространство имен разделяемого состояния.
type ContextType string

const (
	ContextConversation ContextType = "conversation" // Диалог с клиентом
	ContextAgentState   ContextType = "agent-state"  // Внутреннее состояние агента
	ContextSession      ContextType = "session"      // Сессия оркестратора
	ContextTask         ContextType = "task"         // Сквозная задача
	ContextGlobal       ContextType = "global"       // Общие данные процесса
)

// Context — TTL-ограниченный мешок key-value состояния, разделяемый агентами
// между вызовами координации. Владелец (OwnerID) — агент или сессия.
type Context struct {
	ID      string      `json:"id"`
	Type    ContextType `json:"type"`
	OwnerID string      `json:"owner_id"`

	Data map[string]interface{} `json:"data"`

	// TTLSeconds: nil — контекст живет вечно; 0 — истекает немедленно.
	// Отрицательные значения недопустимы (отсекаются при создании).
	TTLSeconds *int64 `json:"ttl_seconds,omitempty"`

	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// IsExpired — ленивое вычисление по формуле now > updated_at + ttl.
// Никакой фоновой чистки тут нет: срок проверяется в момент чтения.
func (c *Context) IsExpired(now time.Time) bool {
	if c == nil || c.TTLSeconds == nil {
		return false
	}
	deadline := c.UpdatedAt.Add(time.Duration(*c.TTLSeconds) * time.Second)
	return now.After(deadline)
}

// MergeData рекурсивно вливает patch в Data: вложенные мапы сливаются по ключам,
// скалярные значения и новые ключи перезаписывают. updated_at обновляет вызывающий.
func (c *Context) MergeData(patch map[string]interface{}) {
	if c.Data == nil {
		c.Data = make(map[string]interface{})
	}
	mergeMaps(c.Data, patch)
}

func mergeMaps(dst, src map[string]interface{}) {
	for k, v := range src {
		srcMap, srcIsMap := v.(map[string]interface{})
		if srcIsMap {
			if dstMap, dstIsMap := dst[k].(map[string]interface{}); dstIsMap {
				mergeMaps(dstMap, srcMap)
				continue
			}
		}
		dst[k] = v
	}
}

// Clone — глубокая копия: наружу из стора никогда не отдается внутренняя мапа,
// иначе владелец ссылки обойдет слой мутаций (и инвариант updated_at).
func (c *Context) Clone() *Context {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Data = deepCopyMap(c.Data)
	cp.Metadata = deepCopyMap(c.Metadata)
	if c.TTLSeconds != nil {
		ttl := *c.TTLSeconds
		cp.TTLSeconds = &ttl
	}
	return &cp
}

func deepCopyMap(src map[string]interface{}) map[string]interface{} {
	if src == nil {
		return nil
	}
	dst := make(map[string]interface{}, len(src))
	for k, v := range src {
		if m, ok := v.(map[string]interface{}); ok {
			dst[k] = deepCopyMap(m)
			continue
		}
		dst[k] = v
	}
	return dst
}
