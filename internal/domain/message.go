package domain

import (
	"time"

	"github.com/google/uuid"
)

// MessageType — закрытый набор типов сообщений шины.
type MessageType string

const (
	MessageCommand   MessageType = "command"
	MessageQuery     MessageType = "query"
	MessageResponse  MessageType = "response"
	MessageEvent     MessageType = "event"
	MessageError     MessageType = "error"
	MessageHeartbeat MessageType = "heartbeat"
)

// Message — единица транспорта между сущностями (агентами и коннекторами).
// Неизменяемо после создания: ответы порождаются фабриками NewResponse/NewErrorResponse,
// которые копируют CorrelationID из оригинала.
type Message struct {
	ID     string      `json:"id"` // UUID, уникален в рамках процесса
	Type   MessageType `json:"type"`
	Sender string      `json:"sender"`

	// Recipient пуст — значит broadcast: fan-out всем подписчикам, кроме отправителя
	Recipient string `json:"recipient,omitempty"`

	Content map[string]interface{} `json:"content,omitempty"`

	// CorrelationID связывает ответ с ID исходного сообщения той же шины
	CorrelationID string `json:"correlation_id,omitempty"`

	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// NewMessage — базовая фабрика. Recipient="" дает broadcast.
func NewMessage(msgType MessageType, sender, recipient string, content map[string]interface{}) Message {
	return Message{
		ID:        uuid.New().String(),
		Type:      msgType,
		Sender:    sender,
		Recipient: recipient,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewResponse строит ответ на original: получатель — отправитель оригинала,
// CorrelationID — ID оригинала. Именно по нему шина будит заждавшегося отправителя.
func NewResponse(original Message, sender string, content map[string]interface{}) Message {
	resp := NewMessage(MessageResponse, sender, original.Sender, content)
	resp.CorrelationID = original.ID
	return resp
}

// NewErrorResponse — ответ-ошибка: тот же механизм корреляции, что и у NewResponse,
// но тип error и текст сбоя в content.
func NewErrorResponse(original Message, sender string, errText string) Message {
	resp := NewMessage(MessageError, sender, original.Sender, map[string]interface{}{
		"error": errText,
	})
	resp.CorrelationID = original.ID
	return resp
}

// IsBroadcast — сообщение без явного получателя
func (m Message) IsBroadcast() bool {
	return m.Recipient == ""
}
