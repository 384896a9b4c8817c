package connectors

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedProvider struct {
	calls   atomic.Int64
	failFor int64 // первые failFor вызовов падают
	err     error
}

func (p *scriptedProvider) Call(_ context.Context, capID string, _ []byte) ([]byte, error) {
	n := p.calls.Add(1)
	if n <= p.failFor {
		return nil, p.err
	}
	return []byte(`{"status":"ok"}`), nil
}

func TestReliabilitySuccessPassthrough(t *testing.T) {
	provider := &scriptedProvider{}
	w := NewReliabilityWrapper("test", provider)

	data, err := w.Call(context.Background(), "kb.search.query", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"ok"}`, string(data))
	assert.Equal(t, int64(1), provider.calls.Load())
}

func TestReliabilityRetriesTransientFailure(t *testing.T) {
	provider := &scriptedProvider{
		failFor: 2,
		err:     &ThrottleError{RetryAfter: time.Millisecond, Cause: fmt.Errorf("429")},
	}
	w := NewReliabilityWrapper("test", provider)

	// Два сбоя съедают две попытки, третья успешна
	data, err := w.Call(context.Background(), "erp.ticket.update", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"ok"}`, string(data))
	assert.Equal(t, int64(3), provider.calls.Load())
}

func TestReliabilityExhaustedRetries(t *testing.T) {
	provider := &scriptedProvider{
		failFor: 100,
		err:     &ThrottleError{RetryAfter: time.Millisecond, Cause: fmt.Errorf("503")},
	}
	w := NewReliabilityWrapper("test", provider)

	_, err := w.Call(context.Background(), "erp.ticket.update", nil)
	require.Error(t, err)
	assert.Equal(t, int64(3), provider.calls.Load(), "ровно 3 попытки")
}

func TestReliabilityCircuitBreakerOpens(t *testing.T) {
	provider := &scriptedProvider{
		failFor: 1000,
		err:     &ThrottleError{RetryAfter: time.Millisecond, Cause: fmt.Errorf("down")},
	}
	w := NewReliabilityWrapper("test", provider)

	// Больше 5 подряд проваленных исполнений открывают предохранитель
	for i := 0; i < 6; i++ {
		_, err := w.Call(context.Background(), "unstable.service", nil)
		require.Error(t, err)
	}

	before := provider.calls.Load()
	_, err := w.Call(context.Background(), "unstable.service", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState))
	assert.Equal(t, before, provider.calls.Load(), "открытый CB не пускает трафик к провайдеру")
}

func TestThrottleErrorUnwrap(t *testing.T) {
	cause := fmt.Errorf("quota exceeded")
	err := &ThrottleError{RetryAfter: time.Second, Cause: cause}

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "retry after")
}
