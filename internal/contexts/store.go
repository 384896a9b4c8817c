package contexts

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xela07ax/helpdesk-agent-core/internal/domain"
	"github.com/xela07ax/helpdesk-agent-core/internal/infra"
	"go.uber.org/zap"
)

// Store — двухуровневое хранилище контекстов: L1 (мапа процесса) поверх
// необязательного внешнего KV-бэкенда. Чтение: сперва RAM, на промахе —
// бэкенд с подселением в RAM. Запись: в оба уровня. Бэкенд недоступен или
// не сконфигурирован (nil) — стор деградирует до чисто процессной семантики,
// сбой бэкенда на конкретном вызове никогда не валит операцию.
//
// Истечение ленивое: каждая читающая операция перепроверяет срок и выселяет
// протухшее. SweepExpired — только housekeeping, корректность от него не зависит.
type Store struct {
	mu       sync.RWMutex
	cache    map[string]*domain.Context
	ownerIdx map[string]map[string]struct{} // ownerID -> ids (зеркало индекса бэкенда в L1)

	backend KV // nil — режим "только RAM"
	metrics *infra.Metrics
	logger  *zap.Logger
}

func NewStore(backend KV, metrics *infra.Metrics, logger *zap.Logger) *Store {
	return &Store{
		cache:    make(map[string]*domain.Context),
		ownerIdx: make(map[string]map[string]struct{}),
		backend:  backend,
		metrics:  metrics,
		logger:   logger.Named("contexts"),
	}
}

// Create заводит контекст. false — отрицательный TTL (единственный способ
// испортить создание; ноль валиден и означает "истекает немедленно").
func (s *Store) Create(ctx context.Context, typ domain.ContextType, ownerID string, data map[string]interface{}, ttlSeconds *int64, metadata map[string]interface{}) (domain.Context, bool) {
	if ttlSeconds != nil && *ttlSeconds < 0 {
		s.logger.Warn("rejected context with negative ttl",
			zap.String("owner_id", ownerID),
			zap.Int64("ttl", *ttlSeconds))
		return domain.Context{}, false
	}

	now := time.Now()
	record := &domain.Context{
		ID:         uuid.New().String(),
		Type:       typ,
		OwnerID:    ownerID,
		Data:       data,
		TTLSeconds: ttlSeconds,
		Metadata:   metadata,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if record.Data == nil {
		record.Data = make(map[string]interface{})
	}

	s.mu.Lock()
	s.cache[record.ID] = record
	s.indexLocked(record.OwnerID, record.ID)
	s.mu.Unlock()

	s.persist(ctx, record)
	return *record.Clone(), true
}

// Get возвращает копию живого контекста. Протухший выселяется из обоих
// уровней, и вызов отвечает false — ровно как для неизвестного ID.
func (s *Store) Get(ctx context.Context, id string) (domain.Context, bool) {
	record, ok := s.resolve(ctx, id)
	if !ok {
		return domain.Context{}, false
	}

	// Клонируем под локом: Update мутирует запись в кэше по месту
	s.mu.RLock()
	expired := record.IsExpired(time.Now())
	cp := record.Clone()
	s.mu.RUnlock()

	if expired {
		s.evict(ctx, record)
		return domain.Context{}, false
	}
	return *cp, true
}

// Update вливает patch в данные контекста (merge=true — рекурсивное слияние,
// false — полная замена) и обновляет updated_at. Протухшая, но еще не
// выселенная запись при этом оживает: свежий updated_at сдвигает срок,
// запись функционально новая. false — ID неизвестен ни одному уровню.
func (s *Store) Update(ctx context.Context, id string, data map[string]interface{}, merge bool) (domain.Context, bool) {
	record, ok := s.resolve(ctx, id)
	if !ok {
		s.logger.Warn("update: unknown context", zap.String("context_id", id))
		return domain.Context{}, false
	}

	s.mu.Lock()
	if merge {
		record.MergeData(data)
	} else {
		record.Data = data
		if record.Data == nil {
			record.Data = make(map[string]interface{})
		}
	}
	record.UpdatedAt = time.Now()
	result := record.Clone()
	s.mu.Unlock()

	s.persist(ctx, result)
	return *result, true
}

// Delete убирает контекст из обоих уровней. false — ID неизвестен.
func (s *Store) Delete(ctx context.Context, id string) bool {
	record, ok := s.resolve(ctx, id)
	if !ok {
		return false
	}
	s.evict(ctx, record)
	return true
}

// ListByOwner — живые контексты владельца, опционально отфильтрованные по типу.
// Объединяет L1 с индексом бэкенда (owner:{id}:contexts), подселяя найденное в RAM.
func (s *Store) ListByOwner(ctx context.Context, ownerID string, typ domain.ContextType) []domain.Context {
	ids := make(map[string]struct{})

	s.mu.RLock()
	for id := range s.ownerIdx[ownerID] {
		ids[id] = struct{}{}
	}
	s.mu.RUnlock()

	if s.backend != nil {
		members, err := s.backend.MembersOf(ctx, infra.OwnerContextsKey(ownerID))
		if err != nil {
			s.logger.Warn("backend unavailable, listing from cache only",
				zap.String("owner_id", ownerID), zap.Error(err))
		} else {
			for _, id := range members {
				ids[id] = struct{}{}
			}
		}
	}

	result := make([]domain.Context, 0, len(ids))
	for id := range ids {
		record, ok := s.Get(ctx, id) // Get сам выселит протухшее
		if !ok {
			continue
		}
		if typ != "" && record.Type != typ {
			continue
		}
		result = append(result, record)
	}
	return result
}

// SweepExpired — ранний проход по L1 для housekeeping (безопасно дергать по
// таймеру). Возвращает число выселенных записей.
func (s *Store) SweepExpired(ctx context.Context) int {
	now := time.Now()

	s.mu.RLock()
	expired := make([]*domain.Context, 0)
	for _, record := range s.cache {
		if record.IsExpired(now) {
			expired = append(expired, record)
		}
	}
	s.mu.RUnlock()

	for _, record := range expired {
		s.evict(ctx, record)
	}

	if len(expired) > 0 {
		s.logger.Debug("swept expired contexts", zap.Int("count", len(expired)))
	}
	return len(expired)
}

// CacheSize — записей в L1 (для дашборда)
func (s *Store) CacheSize() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cache)
}

// resolve находит запись: RAM, затем бэкенд (с подселением в RAM).
// Срок жизни здесь не проверяется — это забота вызывающего.
func (s *Store) resolve(ctx context.Context, id string) (*domain.Context, bool) {
	s.mu.RLock()
	record, ok := s.cache[id]
	s.mu.RUnlock()

	if ok {
		s.metrics.ContextCacheHits.Inc()
		return record, true
	}
	s.metrics.ContextCacheMisses.Inc()

	if s.backend == nil {
		return nil, false
	}

	data, found, err := s.backend.Get(ctx, infra.ContextKey(id))
	if err != nil {
		s.logger.Warn("backend unavailable on get", zap.String("context_id", id), zap.Error(err))
		return nil, false
	}
	if !found {
		return nil, false
	}

	var rehydrated domain.Context
	if err := json.Unmarshal(data, &rehydrated); err != nil {
		s.logger.Error("corrupted context record in backend",
			zap.String("context_id", id), zap.Error(err))
		return nil, false
	}

	s.mu.Lock()
	// Гонка подселения: если запись уже появилась в RAM, она новее
	if existing, ok := s.cache[id]; ok {
		s.mu.Unlock()
		return existing, true
	}
	s.cache[id] = &rehydrated
	s.indexLocked(rehydrated.OwnerID, id)
	s.mu.Unlock()

	return &rehydrated, true
}

// persist пишет запись в бэкенд (если он есть). Сбой — Warn и деградация:
// RAM-копия уже консистентна, вызов стора не проваливается.
func (s *Store) persist(ctx context.Context, record *domain.Context) {
	if s.backend == nil {
		return
	}

	data, err := json.Marshal(record)
	if err != nil {
		s.logger.Error("context serialization failed", zap.String("context_id", record.ID), zap.Error(err))
		return
	}

	var ttl time.Duration
	if record.TTLSeconds != nil && *record.TTLSeconds > 0 {
		ttl = time.Duration(*record.TTLSeconds) * time.Second
	}

	if err := s.backend.Set(ctx, infra.ContextKey(record.ID), data, ttl); err != nil {
		s.logger.Warn("backend unavailable on set", zap.String("context_id", record.ID), zap.Error(err))
		return
	}
	if err := s.backend.AddToSet(ctx, infra.OwnerContextsKey(record.OwnerID), record.ID); err != nil {
		s.logger.Warn("backend owner index update failed", zap.String("context_id", record.ID), zap.Error(err))
	}
}

// evict выселяет запись из обоих уровней (ленивое истечение и Delete)
func (s *Store) evict(ctx context.Context, record *domain.Context) {
	s.mu.Lock()
	delete(s.cache, record.ID)
	if ids, ok := s.ownerIdx[record.OwnerID]; ok {
		delete(ids, record.ID)
		if len(ids) == 0 {
			delete(s.ownerIdx, record.OwnerID)
		}
	}
	s.mu.Unlock()

	if s.backend == nil {
		return
	}
	if err := s.backend.Delete(ctx, infra.ContextKey(record.ID)); err != nil {
		s.logger.Warn("backend unavailable on delete", zap.String("context_id", record.ID), zap.Error(err))
	}
	if err := s.backend.RemoveFromSet(ctx, infra.OwnerContextsKey(record.OwnerID), record.ID); err != nil {
		s.logger.Warn("backend owner index cleanup failed", zap.String("context_id", record.ID), zap.Error(err))
	}
}

func (s *Store) indexLocked(ownerID, id string) {
	ids, ok := s.ownerIdx[ownerID]
	if !ok {
		ids = make(map[string]struct{})
		s.ownerIdx[ownerID] = ids
	}
	ids[id] = struct{}{}
}
