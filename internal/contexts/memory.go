package contexts

import (
	"context"
	"sync"
	"time"
)

// MemoryKV — процессная реализация KV: для тестов и для запуска ядра
// без Redis вовсе. Честно поддерживает серверный TTL, чтобы поведение
// не расходилось с сетевой реализацией.
type MemoryKV struct {
	mu     sync.RWMutex
	values map[string]memEntry
	sets   map[string]map[string]struct{}
}

type memEntry struct {
	data     []byte
	deadline time.Time // нулевое время — без истечения
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{
		values: make(map[string]memEntry),
		sets:   make(map[string]map[string]struct{}),
	}
}

func (m *MemoryKV) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	entry, ok := m.values[key]
	m.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}
	if !entry.deadline.IsZero() && time.Now().After(entry.deadline) {
		m.mu.Lock()
		delete(m.values, key)
		m.mu.Unlock()
		return nil, false, nil
	}
	return entry.data, true, nil
}

func (m *MemoryKV) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	entry := memEntry{data: append([]byte(nil), value...)}
	if ttl > 0 {
		entry.deadline = time.Now().Add(ttl)
	}

	m.mu.Lock()
	m.values[key] = entry
	m.mu.Unlock()
	return nil
}

func (m *MemoryKV) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.values, key)
	m.mu.Unlock()
	return nil
}

func (m *MemoryKV) AddToSet(_ context.Context, setKey, member string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	set, ok := m.sets[setKey]
	if !ok {
		set = make(map[string]struct{})
		m.sets[setKey] = set
	}
	set[member] = struct{}{}
	return nil
}

func (m *MemoryKV) RemoveFromSet(_ context.Context, setKey, member string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if set, ok := m.sets[setKey]; ok {
		delete(set, member)
		if len(set) == 0 {
			delete(m.sets, setKey)
		}
	}
	return nil
}

func (m *MemoryKV) MembersOf(_ context.Context, setKey string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	members := make([]string, 0, len(m.sets[setKey]))
	for member := range m.sets[setKey] {
		members = append(members, member)
	}
	return members, nil
}
