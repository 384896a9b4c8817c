package bus

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xela07ax/helpdesk-agent-core/internal/domain"
	"github.com/xela07ax/helpdesk-agent-core/internal/infra"
	"go.uber.org/zap"
)

// Handler обрабатывает одно входящее сообщение. Ошибка не прерывает доставку
// остальным хэндлерам сущности: шина конвертирует ее в error-response отправителю.
// Хэндлеры должны быть быстрыми и неблокирующими — отмены исполнения нет.
type Handler func(ctx context.Context, msg domain.Message) error

// HandlerID — токен регистрации (функции в Go несравнимы, снимать
// регистрацию можно только по токену).
type HandlerID int

type registration struct {
	id HandlerID
	fn Handler
}

// Bus — асинхронный транспорт между именованными сущностями (агенты, коннекторы).
// Гарантии: FIFO в рамках очереди одной сущности, никакого глобального порядка;
// broadcast — fan-out всем подписчикам, кроме отправителя, без агрегации ответов.
// Переполнение очереди — reject: сообщение отбрасывается с Warn и метрикой.
type Bus struct {
	mu          sync.RWMutex
	queues      map[string]*inbox
	handlers    map[string][]registration
	subscribers map[string]struct{}

	// pending: correlation id (= ID исходного сообщения) -> ждущий future.
	// Канал емкости 1: доставка ответа не блокирует даже при гонке с таймаутом.
	pending map[string]chan domain.Message

	nextHandlerID atomic.Int64
	dropped       atomic.Int64

	capacity       int
	defaultTimeout time.Duration
	metrics        *infra.Metrics
	logger         *zap.Logger
}

func New(capacity int, defaultTimeout time.Duration, metrics *infra.Metrics, logger *zap.Logger) *Bus {
	if defaultTimeout <= 0 {
		defaultTimeout = 30 * time.Second
	}
	return &Bus{
		queues:         make(map[string]*inbox),
		handlers:       make(map[string][]registration),
		subscribers:    make(map[string]struct{}),
		pending:        make(map[string]chan domain.Message),
		capacity:       capacity,
		defaultTimeout: defaultTimeout,
		metrics:        metrics,
		logger:         logger.Named("bus"),
	}
}

// SubscribeBroadcast добавляет сущность в множество получателей broadcast.
// Чистая смена членства: очередь заводится лениво при первой доставке.
func (b *Bus) SubscribeBroadcast(entityID string) {
	b.mu.Lock()
	b.subscribers[entityID] = struct{}{}
	b.mu.Unlock()
}

func (b *Bus) UnsubscribeBroadcast(entityID string) {
	b.mu.Lock()
	delete(b.subscribers, entityID)
	b.mu.Unlock()
}

// RegisterHandler вешает хэндлер на сущность. Хэндлеров может быть несколько —
// доставка вызывает их в порядке регистрации. Возвращает токен для снятия.
func (b *Bus) RegisterHandler(entityID string, fn Handler) HandlerID {
	id := HandlerID(b.nextHandlerID.Add(1))

	b.mu.Lock()
	b.handlers[entityID] = append(b.handlers[entityID], registration{id: id, fn: fn})
	b.mu.Unlock()
	return id
}

// UnregisterHandler снимает хэндлер по токену. false — токен неизвестен.
func (b *Bus) UnregisterHandler(entityID string, id HandlerID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	regs := b.handlers[entityID]
	for i, reg := range regs {
		if reg.id == id {
			b.handlers[entityID] = append(regs[:i:i], regs[i+1:]...)
			return true
		}
	}
	return false
}

// Send — отправка без ожидания ответа. Пустой Recipient — broadcast:
// копия в очередь каждого подписчика, кроме отправителя, возврат немедленно.
// false — точечное сообщение отброшено переполненной очередью получателя
// (для broadcast отбросы по отдельным получателям не считаются отказом).
func (b *Bus) Send(msg domain.Message) bool {
	b.metrics.MessagesSent.WithLabelValues(string(msg.Type)).Inc()

	if msg.IsBroadcast() {
		b.fanOut(msg)
		return true
	}
	return b.enqueueTo(msg.Recipient, msg)
}

// SendAndWait — точечная отправка с кооперативным ожиданием коррелированного
// ответа. Возвращает (ответ, true) либо (пусто, false) по таймауту/отмене ctx.
// По истечении срока ожидание снимается: опоздавший ответ будет считаться
// несовпавшим и молча отброшен в CompleteResponse.
func (b *Bus) SendAndWait(ctx context.Context, msg domain.Message, timeout time.Duration) (domain.Message, bool) {
	if msg.IsBroadcast() {
		// Агрегации ответов на broadcast нет (fire-and-forget by design)
		b.logger.Warn("broadcast message passed to SendAndWait, falling back to fire-and-forget",
			zap.String("message_id", msg.ID))
		b.Send(msg)
		return domain.Message{}, false
	}
	if timeout <= 0 {
		timeout = b.defaultTimeout
	}

	// Future регистрируется ДО постановки в очередь: получатель может
	// успеть ответить раньше, чем отправитель начнет ждать
	future := make(chan domain.Message, 1)
	b.mu.Lock()
	b.pending[msg.ID] = future
	b.mu.Unlock()

	if !b.Send(msg) {
		b.removePending(msg.ID)
		return domain.Message{}, false
	}

	start := time.Now()
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case resp := <-future:
		b.metrics.ResponseWait.Observe(time.Since(start).Seconds())
		return resp, true
	case <-timer.C:
		b.removePending(msg.ID)
		b.logger.Debug("correlated response timed out",
			zap.String("message_id", msg.ID),
			zap.Duration("timeout", timeout))
		return domain.Message{}, false
	case <-ctx.Done():
		b.removePending(msg.ID)
		return domain.Message{}, false
	}
}

// ProcessOne вычитывает ровно одно сообщение из очереди сущности и прогоняет
// его через все зарегистрированные хэндлеры по порядку. Сбой хэндлера
// (ошибка или паника) логируется, конвертируется в error-response отправителю
// и НЕ прерывает ни остальные хэндлеры, ни вызывающего. false — очередь пуста.
func (b *Bus) ProcessOne(ctx context.Context, entityID string) bool {
	b.mu.RLock()
	q := b.queues[entityID]
	regs := append([]registration(nil), b.handlers[entityID]...)
	b.mu.RUnlock()

	if q == nil {
		return false
	}
	msg, ok := q.dequeue()
	if !ok {
		return false
	}
	b.metrics.QueueDepth.WithLabelValues(entityID).Set(float64(q.len()))

	for _, reg := range regs {
		if err := b.safeInvoke(ctx, reg.fn, msg); err != nil {
			b.metrics.HandlerFailures.Inc()
			b.logger.Warn("handler failed",
				zap.String("entity_id", entityID),
				zap.String("message_id", msg.ID),
				zap.Error(err))
			b.CompleteResponse(domain.NewErrorResponse(msg, entityID, err.Error()))
		}
	}
	return true
}

// safeInvoke изолирует панику хэндлера: для шины это обычная ошибка обработки
func (b *Bus) safeInvoke(ctx context.Context, fn Handler, msg domain.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return fn(ctx, msg)
}

// CompleteResponse будит отправителя, ждущего ответ с этим correlation id.
// Ответ без ждущего (опоздавший, дубликат, fire-and-forget запрос) молча
// отбрасывается: гарантированной доставки ответов нет.
func (b *Bus) CompleteResponse(resp domain.Message) {
	if resp.CorrelationID == "" {
		b.logger.Debug("response without correlation id dropped", zap.String("message_id", resp.ID))
		return
	}

	b.mu.Lock()
	future, ok := b.pending[resp.CorrelationID]
	if ok {
		delete(b.pending, resp.CorrelationID)
	}
	b.mu.Unlock()

	if !ok {
		b.logger.Debug("unmatched response dropped",
			zap.String("message_id", resp.ID),
			zap.String("correlation_id", resp.CorrelationID))
		return
	}
	future <- resp // емкость 1, не блокирует
}

// QueueLen — текущая глубина очереди сущности
func (b *Bus) QueueLen(entityID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if q := b.queues[entityID]; q != nil {
		return q.len()
	}
	return 0
}

// Stats — снимок для дашборда консоли
func (b *Bus) Stats() domain.BusStats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	queued := 0
	for _, q := range b.queues {
		queued += q.len()
	}
	return domain.BusStats{
		Queued:      queued,
		Subscribers: len(b.subscribers),
		Dropped:     b.dropped.Load(),
		InFlight:    len(b.pending),
	}
}

// fanOut раскладывает broadcast по очередям подписчиков (кроме отправителя).
// Копии независимы: дальше каждая живет своим lifecycle'ом point-to-point.
func (b *Bus) fanOut(msg domain.Message) {
	b.mu.RLock()
	targets := make([]string, 0, len(b.subscribers))
	for id := range b.subscribers {
		if id != msg.Sender {
			targets = append(targets, id)
		}
	}
	b.mu.RUnlock()

	for _, id := range targets {
		copyMsg := msg
		copyMsg.Recipient = id
		b.enqueueTo(id, copyMsg)
	}
}

func (b *Bus) enqueueTo(entityID string, msg domain.Message) bool {
	b.mu.Lock()
	q, ok := b.queues[entityID]
	if !ok {
		q = newInbox(b.capacity)
		b.queues[entityID] = q
	}
	b.mu.Unlock()

	if !q.enqueue(msg) {
		b.dropped.Add(1)
		b.metrics.MessagesDropped.Inc()
		b.logger.Warn("message dropped: recipient queue is full",
			zap.String("recipient", entityID),
			zap.String("message_id", msg.ID))
		return false
	}
	b.metrics.QueueDepth.WithLabelValues(entityID).Set(float64(q.len()))
	return true
}

func (b *Bus) removePending(msgID string) {
	b.mu.Lock()
	delete(b.pending, msgID)
	b.mu.Unlock()
}
