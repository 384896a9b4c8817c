package bus

import "github.com/xela07ax/helpdesk-agent-core/internal/domain"

// inbox — ограниченная FIFO-очередь входящих сообщений одной сущности.
// Буферизованный канал дает и порядок, и дешевый неблокирующий reject:
// при переполнении сообщение отбрасывается (backpressure-политика ядра).
// Контракт конкурентности: очередь вычитывает не более одного потребителя
// одновременно, писателей может быть много.
type inbox struct {
	ch chan domain.Message
}

func newInbox(capacity int) *inbox {
	if capacity <= 0 {
		capacity = 256
	}
	return &inbox{ch: make(chan domain.Message, capacity)}
}

// enqueue — неблокирующая постановка. false — очередь полна, сообщение отброшено.
func (q *inbox) enqueue(msg domain.Message) bool {
	select {
	case q.ch <- msg:
		return true
	default:
		return false
	}
}

// dequeue — неблокирующая выборка ровно одного сообщения. false — очередь пуста.
func (q *inbox) dequeue() (domain.Message, bool) {
	select {
	case msg := <-q.ch:
		return msg, true
	default:
		return domain.Message{}, false
	}
}

func (q *inbox) len() int {
	return len(q.ch)
}
