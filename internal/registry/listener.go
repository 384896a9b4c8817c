package registry

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/helpdesk-agent-core/internal/infra"
	"go.uber.org/zap"
)

// StatusSync синхронизирует статусы агентов между инстансами ядра через Redis Pub/Sub.
// Это не источник правды (им остается локальный реестр каждого инстанса),
// а сигнальный слой с семантикой best effort: потерянный сигнал не фатален.
type StatusSync struct {
	rdb    *redis.Client
	logger *zap.Logger
}

func NewStatusSync(rdb *redis.Client, logger *zap.Logger) *StatusSync {
	return &StatusSync{
		rdb:    rdb,
		logger: logger.Named("status-sync"),
	}
}

// PublishStatus реализует StatusPublisher. Сбой Redis — только Warn:
// локальный реестр уже обновлен, деградируем до одиночного инстанса.
func (s *StatusSync) PublishStatus(agentID, status string) {
	payload := fmt.Sprintf("%s:%s", agentID, status)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := s.rdb.Publish(ctx, infra.RedisChanAgentStatus, payload).Err(); err != nil {
		s.logger.Warn("status signal delivery failed",
			zap.String("agent_id", agentID),
			zap.Error(err))
	}
}

// Listen — "живучая" подписка на сигналы статусов: переподключение с паузой,
// повторная синхронизация через onReconnect при каждом успешном коннекте.
// Блокирует до отмены ctx, запускать в отдельной горутине.
func (s *StatusSync) Listen(ctx context.Context, reg *Registry, onReconnect func() error) {
	for {
		pubsub := s.rdb.Subscribe(ctx, infra.RedisChanAgentStatus)

		// Проверка успешности подписки
		if _, err := pubsub.Receive(ctx); err != nil {
			pubsub.Close()
			if ctx.Err() != nil {
				return
			}
			s.logger.Error("failed to subscribe", zap.String("chan", infra.RedisChanAgentStatus), zap.Error(err))
			time.Sleep(5 * time.Second)
			continue
		}

		// Синхронизация при каждом успешном коннекте
		if onReconnect != nil {
			if err := onReconnect(); err != nil {
				s.logger.Error("sync failed on reconnect", zap.Error(err))
			}
		}

		ch := pubsub.Channel()

	loop:
		for {
			select {
			case <-ctx.Done():
				pubsub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					break loop // Канал закрыт, идем на переподключение
				}

				// Разбор формата "agent_id:status"
				parts := strings.SplitN(msg.Payload, ":", 2)
				if len(parts) != 2 || parts[0] == "" {
					s.logger.Error("invalid signal format", zap.String("payload", msg.Payload))
					continue
				}

				// ApplyStatus, не UpdateStatus: иначе сигнал уйдет по кругу
				reg.ApplyStatus(parts[0], parts[1])
			}
		}

		pubsub.Close()
		time.Sleep(1 * time.Second)
	}
}
