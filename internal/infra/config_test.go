package infra

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	// Файла config.yaml в каталоге пакета нет: работаем на дефолтах
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, 9090, cfg.Server.MetricsPort)
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, 256, cfg.Kernel.QueueCapacity)
	assert.Equal(t, 30*time.Second, cfg.Kernel.DefaultSendTimeout)
	assert.Equal(t, time.Minute, cfg.Kernel.SweepInterval)
	assert.Equal(t, 10000, cfg.Kernel.AuditBufferSize)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("SERVER_PORT", "9001")
	t.Setenv("KERNEL_QUEUE_CAPACITY", "64")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 9001, cfg.Server.Port)
	assert.Equal(t, 64, cfg.Kernel.QueueCapacity)
}

func TestLoadKeyResourcePrefersEnv(t *testing.T) {
	t.Setenv("TEST_KEY_DATA", "-----BEGIN FAKE-----")

	data := loadKeyResource("/nonexistent/path.pem", "TEST_KEY_DATA")
	assert.Equal(t, []byte("-----BEGIN FAKE-----"), data)

	assert.Nil(t, loadKeyResource("/nonexistent/path.pem", "UNSET_ENV_KEY"))
}

func TestRedisKeyHelpers(t *testing.T) {
	assert.Equal(t, "context:c-1", ContextKey("c-1"))
	assert.Equal(t, "owner:agent-1:contexts", OwnerContextsKey("agent-1"))
}
