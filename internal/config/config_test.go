package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/PedroCamargo-dev/core-bank-transfer-saga/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, config.StoreMemory, cfg.Store.Driver)
	assert.Equal(t, config.BrokerMemory, cfg.Broker.Driver)
	assert.Equal(t, 10, cfg.Broker.Prefetch)
	assert.Equal(t, 10, cfg.Broker.MaxRedeliveries)
	assert.Equal(t, "transfers.dlq", cfg.Broker.DeadLetterQueue)
	assert.Equal(t, time.Minute, cfg.Broker.HandlerTimeout)
	assert.Equal(t, uint32(5), cfg.Ledger.BreakerFailures)
	assert.False(t, cfg.Redis.Enabled())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("SERVER_SHUTDOWN_TIMEOUT", "3s")
	t.Setenv("STORE_DRIVER", "Postgres")
	t.Setenv("BROKER_DRIVER", "rabbitmq")
	t.Setenv("RABBITMQ_PREFETCH", "32")
	t.Setenv("BROKER_MAX_REDELIVERIES", "3")
	t.Setenv("BROKER_RETRY_DELAY", "250ms")
	t.Setenv("LEDGER_BASE_URL", "http://ledger:5000")
	t.Setenv("LEDGER_TIMEOUT", "2s")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("LOCK_EXPIRY", "1m")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.Equal(t, 3*time.Second, cfg.HTTP.ShutdownTimeout)
	assert.Equal(t, config.StorePostgres, cfg.Store.Driver)
	assert.Equal(t, config.BrokerRabbitMQ, cfg.Broker.Driver)
	assert.Equal(t, 32, cfg.Broker.Prefetch)
	assert.Equal(t, 3, cfg.Broker.MaxRedeliveries)
	assert.Equal(t, 250*time.Millisecond, cfg.Broker.RetryDelay)
	assert.Equal(t, "http://ledger:5000", cfg.Ledger.BaseURL)
	assert.Equal(t, 2*time.Second, cfg.Ledger.Timeout)
	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, time.Minute, cfg.Redis.LockExpiry)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "bad duration", key: "LEDGER_TIMEOUT", value: "soon"},
		{name: "bad int", key: "RABBITMQ_PREFETCH", value: "many"},
		{name: "port out of range", key: "SERVER_PORT", value: "70000"},
		{name: "unknown store", key: "STORE_DRIVER", value: "sqlite"},
		{name: "unknown broker", key: "BROKER_DRIVER", value: "kafka"},
		{name: "zero breaker failures", key: "LEDGER_BREAKER_FAILURES", value: "0"},
		{name: "zero redeliveries", key: "BROKER_MAX_REDELIVERIES", value: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			_, err := config.Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("LEDGER_BASE_URL=http://from-dotenv:5000\n"), 0o600))

	// register cleanup for the variable godotenv is about to set
	t.Setenv("LEDGER_BASE_URL", "")
	require.NoError(t, os.Unsetenv("LEDGER_BASE_URL"))

	require.NoError(t, config.LoadDotEnv(filepath.Join(dir, "missing.env"), path))

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "http://from-dotenv:5000", cfg.Ledger.BaseURL)
}
