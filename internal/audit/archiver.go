package audit

/*
Файл archiver.go реализует батчевый архиватор журнала решений (Audit Trail -> БД).

Ключевые особенности архитектуры:
- Non-blocking Logging: неблокирующий канал на входе. Проверка прав не ждет базу:
  задержки записи не влияют на Response Time координации.
- Batching & Efficiency: накопление записей в памяти и пакетная вставка (Bulk Insert)
  по таймеру или при достижении лимита батча.
- Drain Pattern & Graceful Shutdown: при остановке канал закрывается, воркер
  вычитывает остатки и делает финальный flush — записи не теряются при перезапуске.
- Load Shedding: при переполнении буфера запись уходит в обычный лог, а не блокирует
  вызывающего. Авторитетная копия в любом случае остается в Trail.
*/

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xela07ax/helpdesk-agent-core/internal/domain"
	"go.uber.org/zap"
)

// StorageInterface определяет, куда физически сохраняются записи
type StorageInterface interface {
	// WriteBatch сохраняет пачку записей за один раз
	WriteBatch(ctx context.Context, entries []domain.AuditEntry) error
}

// Options — настройки буфера и батчей (значения приезжают из KernelConfig)
type Options struct {
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
}

type Archiver struct {
	ch     chan domain.AuditEntry // Буфер для асинхронности
	repo   StorageInterface       // Postgres (или любой другой bulk-приемник)
	logger *zap.Logger
	opts   Options
	wg     sync.WaitGroup

	// fill — приблизительная заполненность буфера, экспортируется в метрику
	fill func(n float64)

	// Атомарный флаг (0 - открыт, 1 - закрыт): защита от Log после Stop
	isClosed int32
}

func NewArchiver(repo StorageInterface, logger *zap.Logger, opts Options, fillGauge func(n float64)) *Archiver {
	if opts.BufferSize <= 0 {
		opts.BufferSize = 10000
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = 500 * time.Millisecond
	}
	if fillGauge == nil {
		fillGauge = func(float64) {}
	}
	return &Archiver{
		ch:     make(chan domain.AuditEntry, opts.BufferSize),
		repo:   repo,
		logger: logger.With(zap.String("mod", "audit-archiver")),
		opts:   opts,
		fill:   fillGauge,
	}
}

func (a *Archiver) Start() {
	a.wg.Add(1)
	go a.worker()
}

// Stop «запирает» вход в канал и ждет, пока воркер всё допишет.
func (a *Archiver) Stop() {
	// 1. Сначала ставим флаг
	atomic.StoreInt32(&a.isClosed, 1)

	// 2. Даем крошечную паузу, чтобы текущие Log успели проскочить
	time.Sleep(10 * time.Millisecond)

	// 3. Drain Pattern: завершение воркера — исключительно через закрытие канала
	a.logger.Info("stopping archiver: closing channel and flushing buffer...")
	close(a.ch)
	a.wg.Wait()
	a.logger.Info("archiver stopped gracefully")
}

// Log реализует Sink. Никогда не блокирует вызывающего.
func (a *Archiver) Log(entry domain.AuditEntry) {
	if atomic.LoadInt32(&a.isClosed) == 1 {
		a.logger.Warn("audit entry dropped: archiver is stopping", zap.String("id", entry.ID))
		return
	}

	// Стратегия Load Shedding (сброс нагрузки)
	select {
	case a.ch <- entry:
		a.fill(float64(len(a.ch)))
	default:
		// Буфер переполнен (Backpressure): данные не теряем молча — уходят в лог
		a.logger.Error("audit_buffer_overflow",
			zap.String("agent_id", entry.AgentID),
			zap.String("entry_id", entry.ID),
		)
	}
}

func (a *Archiver) worker() {
	defer a.wg.Done()

	batch := make([]domain.AuditEntry, 0, a.opts.BatchSize)
	ticker := time.NewTicker(a.opts.FlushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) > 0 {
			// Background: основной контекст процесса может быть уже закрыт
			if err := a.repo.WriteBatch(context.Background(), batch); err != nil {
				a.logger.Error("audit flush failed", zap.Error(err))
			}
			batch = batch[:0]
		}
		a.fill(float64(len(a.ch)))
	}

	for {
		select {
		case entry, ok := <-a.ch:
			if !ok {
				// Канал закрыт в Stop(): вычитали остатки, финальный сброс и выход
				flush()
				a.logger.Info("audit worker finished")
				return
			}
			batch = append(batch, entry)
			if len(batch) >= a.opts.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
