package connectors

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/xela07ax/helpdesk-agent-core/internal/bus"
	"github.com/xela07ax/helpdesk-agent-core/internal/domain"
	"go.uber.org/zap"
)

// Bridge делает коннектор внешней системы сущностью шины: входящие
// command/query сообщения исполняются через ExecutionProvider (под защитным
// контуром), результат уходит обратно response-сообщением с корреляцией.
// Решения "кому и что слать" бридж не принимает — только транспорт и исполнение.
type Bridge struct {
	entityID string
	bus      *bus.Bus
	exec     ExecutionProvider
	logger   *zap.Logger

	handlerID bus.HandlerID
}

func NewBridge(entityID string, b *bus.Bus, exec ExecutionProvider, logger *zap.Logger) *Bridge {
	return &Bridge{
		entityID: entityID,
		bus:      b,
		exec:     exec,
		logger:   logger.Named("connector").With(zap.String("entity_id", entityID)),
	}
}

// Attach регистрирует хэндлер на шине. До Attach сообщения копятся в очереди.
func (br *Bridge) Attach() {
	br.handlerID = br.bus.RegisterHandler(br.entityID, br.handle)
}

// Detach снимает хэндлер (очередь и недоставленные сообщения остаются на шине)
func (br *Bridge) Detach() {
	br.bus.UnregisterHandler(br.entityID, br.handlerID)
}

// Run — цикл потребителя: вычитывает очередь бриджа до отмены ctx.
// Ровно один Run на бридж: очередь сущности рассчитана на одного потребителя.
func (br *Bridge) Run(ctx context.Context, pollInterval time.Duration) {
	if pollInterval <= 0 {
		pollInterval = 10 * time.Millisecond
	}
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	br.logger.Info("connector bridge started")
	for {
		select {
		case <-ctx.Done():
			br.logger.Info("connector bridge stopping by context...")
			return
		case <-ticker.C:
			// Дренируем все накопившееся, потом снова спим
			for br.bus.ProcessOne(ctx, br.entityID) {
			}
		}
	}
}

// handle — обработчик одного сообщения. Ошибка уходит вызывающему:
// шина сама превратит ее в error-response с корреляцией.
func (br *Bridge) handle(ctx context.Context, msg domain.Message) error {
	switch msg.Type {
	case domain.MessageCommand, domain.MessageQuery:
		// только исполняемые типы
	default:
		br.logger.Debug("ignoring non-executable message", zap.String("type", string(msg.Type)))
		return nil
	}

	capID, _ := msg.Content["capability"].(string)
	if capID == "" {
		return fmt.Errorf("message %s has no capability field", msg.ID)
	}

	payload, err := json.Marshal(msg.Content["payload"])
	if err != nil {
		return fmt.Errorf("payload serialization failed: %w", err)
	}

	result, err := br.exec.Call(ctx, capID, payload)
	if err != nil {
		return fmt.Errorf("capability %s failed: %w", capID, err)
	}

	var resultMap map[string]interface{}
	if err := json.Unmarshal(result, &resultMap); err != nil {
		// Коннектор вернул не-JSON — отдаем как сырую строку
		resultMap = map[string]interface{}{"raw": string(result)}
	}

	br.bus.CompleteResponse(domain.NewResponse(msg, br.entityID, resultMap))
	return nil
}
