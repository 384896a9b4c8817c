package contexts

import (
	"context"
	"time"
)

// KV — узкий контракт внешнего key-value бэкенда (единственная внешняя
// зависимость ядра). Стор написан только против этого интерфейса:
// ему все равно, Redis за ним или мапа в памяти.
//
// Семантика — last-writer-wins по ключу, никакого оптимистичного контроля:
// бэкенд — это кэш/durability-слой, а не источник строгой консистентности.
type KV interface {
	// Get возвращает (nil, false, nil) при отсутствии ключа
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set пишет значение; ttl > 0 включает серверное истечение ключа
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	Delete(ctx context.Context, key string) error

	// Операции над множествами — для вторичного индекса owner -> context ids
	AddToSet(ctx context.Context, setKey, member string) error
	RemoveFromSet(ctx context.Context, setKey, member string) error
	MembersOf(ctx context.Context, setKey string) ([]string, error)
}
