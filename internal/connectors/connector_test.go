package connectors

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/helpdesk-agent-core/internal/bus"
	"github.com/xela07ax/helpdesk-agent-core/internal/domain"
	"github.com/xela07ax/helpdesk-agent-core/internal/infra"
	"go.uber.org/zap"
)

type staticProvider struct {
	result []byte
	err    error
	lastID string
}

func (p *staticProvider) Call(_ context.Context, capID string, _ []byte) ([]byte, error) {
	p.lastID = capID
	return p.result, p.err
}

func newTestBridge(exec ExecutionProvider) (*Bridge, *bus.Bus) {
	b := bus.New(16, time.Second, infra.NewMetrics(nil), zap.NewNop())
	br := NewBridge("connector:test", b, exec, zap.NewNop())
	br.Attach()
	return br, b
}

func TestBridgeExecutesCommandAndResponds(t *testing.T) {
	provider := &staticProvider{result: []byte(`{"status":"updated"}`)}
	_, b := newTestBridge(provider)

	msg := domain.NewMessage(domain.MessageCommand, "agent-1", "connector:test", map[string]interface{}{
		"capability": "erp.ticket.update",
		"payload":    map[string]interface{}{"ticket": "TCK-1"},
	})

	respCh := make(chan domain.Message, 1)
	go func() {
		if resp, ok := b.SendAndWait(context.Background(), msg, time.Second); ok {
			respCh <- resp
		}
	}()

	require.Eventually(t, func() bool {
		return b.ProcessOne(context.Background(), "connector:test")
	}, time.Second, 5*time.Millisecond)

	select {
	case resp := <-respCh:
		assert.Equal(t, domain.MessageResponse, resp.Type)
		assert.Equal(t, msg.ID, resp.CorrelationID)
		assert.Equal(t, "updated", resp.Content["status"])
		assert.Equal(t, "erp.ticket.update", provider.lastID)
	case <-time.After(time.Second):
		t.Fatal("connector response was not delivered")
	}
}

func TestBridgeIgnoresNonExecutableTypes(t *testing.T) {
	provider := &staticProvider{result: []byte(`{}`)}
	_, b := newTestBridge(provider)

	b.Send(domain.NewMessage(domain.MessageEvent, "agent-1", "connector:test", map[string]interface{}{
		"capability": "erp.ticket.update",
	}))
	require.True(t, b.ProcessOne(context.Background(), "connector:test"))

	assert.Empty(t, provider.lastID, "event не исполняется")
}

func TestBridgeMissingCapabilityYieldsError(t *testing.T) {
	provider := &staticProvider{result: []byte(`{}`)}
	_, b := newTestBridge(provider)

	msg := domain.NewMessage(domain.MessageCommand, "agent-1", "connector:test", nil)
	respCh := make(chan domain.Message, 1)
	go func() {
		if resp, ok := b.SendAndWait(context.Background(), msg, time.Second); ok {
			respCh <- resp
		}
	}()

	require.Eventually(t, func() bool {
		return b.ProcessOne(context.Background(), "connector:test")
	}, time.Second, 5*time.Millisecond)

	select {
	case resp := <-respCh:
		// Ошибка хэндлера конвертируется шиной в error-response
		assert.Equal(t, domain.MessageError, resp.Type)
		assert.Contains(t, resp.Content["error"], "no capability")
	case <-time.After(time.Second):
		t.Fatal("error response was not delivered")
	}
}

func TestBridgeNonJSONResultWrappedAsRaw(t *testing.T) {
	provider := &staticProvider{result: []byte("plain text result")}
	_, b := newTestBridge(provider)

	msg := domain.NewMessage(domain.MessageQuery, "agent-1", "connector:test", map[string]interface{}{
		"capability": "kb.search.query",
	})
	respCh := make(chan domain.Message, 1)
	go func() {
		if resp, ok := b.SendAndWait(context.Background(), msg, time.Second); ok {
			respCh <- resp
		}
	}()

	require.Eventually(t, func() bool {
		return b.ProcessOne(context.Background(), "connector:test")
	}, time.Second, 5*time.Millisecond)

	select {
	case resp := <-respCh:
		assert.Equal(t, "plain text result", resp.Content["raw"])
	case <-time.After(time.Second):
		t.Fatal("response was not delivered")
	}
}

func TestBridgeDetachStopsHandling(t *testing.T) {
	provider := &staticProvider{result: []byte(`{}`)}
	br, b := newTestBridge(provider)
	br.Detach()

	b.Send(domain.NewMessage(domain.MessageCommand, "agent-1", "connector:test", map[string]interface{}{
		"capability": "erp.ticket.update",
	}))
	require.True(t, b.ProcessOne(context.Background(), "connector:test"), "сообщение вычитано из очереди")
	assert.Empty(t, provider.lastID, "но хэндлер снят и не вызван")
}

func TestMockConnectorCapabilities(t *testing.T) {
	mock := &MockSystemsConnector{}
	ctx := context.Background()

	data, err := mock.Call(ctx, "crm.customer.lookup", nil)
	require.NoError(t, err)
	assert.Contains(t, string(data), "customer_id")

	_, err = mock.Call(ctx, "unstable.service", nil)
	assert.Error(t, err)

	_, err = mock.Call(ctx, "unknown.capability", nil)
	assert.Error(t, err)
}
