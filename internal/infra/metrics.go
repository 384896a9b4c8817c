package infra

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics — сигналы здоровья ядра для Prometheus (Four Golden Signals в миниатюре).
type Metrics struct {
	// Traffic: отправленные сообщения по типам
	MessagesSent *prometheus.CounterVec

	// Saturation: глубина очередей и отбросы по backpressure
	QueueDepth      *prometheus.GaugeVec
	MessagesDropped prometheus.Counter

	// Errors: отказы авторизации и сбои хэндлеров
	PermissionDenied prometheus.Counter
	HandlerFailures  prometheus.Counter

	// Latency: ожидание коррелированного ответа
	ResponseWait prometheus.Histogram

	// Cache: попадания/промахи L1 контекстов
	ContextCacheHits   prometheus.Counter
	ContextCacheMisses prometheus.Counter

	// Audit: заполненность буфера архиватора (backpressure)
	AuditBufferFill prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	// Null Object Pattern - Если рег не передан, используем локальный, который никуда не подключен
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		MessagesSent: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "coord_messages_sent_total",
			Help: "Total number of messages accepted by the bus.",
		}, []string{"type"}),

		QueueDepth: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "coord_queue_depth",
			Help: "Current inbound queue depth per entity.",
		}, []string{"entity"}),

		MessagesDropped: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "coord_messages_dropped_total",
			Help: "Messages rejected because the recipient queue was full.",
		}),

		PermissionDenied: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "coord_permission_denied_total",
			Help: "Permission checks resolved to deny.",
		}),

		HandlerFailures: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "coord_handler_failures_total",
			Help: "Message handlers that returned an error or panicked.",
		}),

		ResponseWait: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "coord_response_wait_seconds",
			Help:    "Time spent waiting for a correlated response.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),

		ContextCacheHits: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "coord_context_cache_hits_total",
			Help: "Context lookups served from the in-process map.",
		}),

		ContextCacheMisses: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "coord_context_cache_misses_total",
			Help: "Context lookups that had to consult the external backend.",
		}),

		AuditBufferFill: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "coord_audit_buffer_utilization",
			Help: "Current number of entries in the audit archiver buffer.",
		}),
	}
}
