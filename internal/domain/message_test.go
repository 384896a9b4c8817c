package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewResponseCorrelation(t *testing.T) {
	orig := NewMessage(MessageQuery, "asker", "worker", map[string]interface{}{"q": "?"})
	resp := NewResponse(orig, "worker", map[string]interface{}{"a": "!"})

	assert.Equal(t, MessageResponse, resp.Type)
	assert.Equal(t, orig.ID, resp.CorrelationID)
	assert.Equal(t, orig.Sender, resp.Recipient, "ответ уходит отправителю оригинала")
	assert.NotEqual(t, orig.ID, resp.ID)
}

func TestNewErrorResponse(t *testing.T) {
	orig := NewMessage(MessageCommand, "asker", "worker", nil)
	resp := NewErrorResponse(orig, "worker", "it broke")

	assert.Equal(t, MessageError, resp.Type)
	assert.Equal(t, orig.ID, resp.CorrelationID)
	assert.Equal(t, "it broke", resp.Content["error"])
}

func TestIsBroadcast(t *testing.T) {
	assert.True(t, NewMessage(MessageEvent, "s", "", nil).IsBroadcast())
	assert.False(t, NewMessage(MessageEvent, "s", "r", nil).IsBroadcast())
}
