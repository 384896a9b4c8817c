package connectors

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// MockSystemsConnector имитирует внешние системы хелпдеска (ERP, inbox, KB).
// Для демо-запусков и тестов защитного контура.
type MockSystemsConnector struct{}

func (c *MockSystemsConnector) Call(ctx context.Context, capID string, payload []byte) ([]byte, error) {
	// Имитируем задержку 50-300мс
	latency := time.Duration(50+rand.Intn(250)) * time.Millisecond

	select {
	case <-time.After(latency):
		// Имитация работы
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if capID == "unstable.service" {
		return nil, fmt.Errorf("service internal error")
	}

	switch capID {
	case "erp.ticket.update":
		return []byte(`{"status": "updated", "integration": "erp", "ticket_id": "TCK-1042"}`), nil
	case "inbox.message.send":
		return []byte(`{"status": "sent", "integration": "inbox", "thread_id": "TH-77"}`), nil

	// Поиск по базе знаний
	case "kb.search.query":
		return []byte(`{"status": "success", "hits": [{"doc_id": "KB-15", "score": 0.92}]}`), nil

	// Коннектор к CRM
	case "crm.customer.lookup":
		return []byte(`{"status": "found", "customer_id": "C-330", "tier": "gold"}`), nil

	default:
		return nil, fmt.Errorf("capability %s not supported by connector", capID)
	}
}
