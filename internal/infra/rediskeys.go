package infra

import "fmt"

const (
	// RedisNamespace Базовый префикс для изоляции служебных данных ядра в Redis.
	// Ключи контекстов (context:{id}) намеренно без префикса — это внешний
	// контракт key-value бэкенда, его формат фиксирован.
	RedisNamespace = "helpdesk"
)

// Каналы Pub/Sub (события)
const (
	// RedisChanAgentStatus — канал трансляции смены статуса агента между инстансами ядра.
	// Формат сообщения: "agent_id:status"
	RedisChanAgentStatus = RedisNamespace + ":agents:status-signal"
)

// ContextKey — ключ записи контекста во внешнем бэкенде
func ContextKey(id string) string {
	return fmt.Sprintf("context:%s", id)
}

// OwnerContextsKey — вторичный индекс: множество ID контекстов владельца
func OwnerContextsKey(ownerID string) string {
	return fmt.Sprintf("owner:%s:contexts", ownerID)
}
