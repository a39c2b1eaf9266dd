package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var keys = []string{
	"PORT", "DATABASE_DRIVER", "DATABASE_URL", "JWT_SECRET", "FINE_MULTIPLIER",
	"PAYMENT_GATEWAY", "PAYMENT_GATEWAY_AUTOPAY", "PAYMENT_GATEWAY_URL", "PAYMENT_GATEWAY_API_KEY", "PAYMENT_SUCCESS_URL", "PAYMENT_CANCEL_URL",
	"GATEWAY_RATE_LIMIT", "GATEWAY_TIMEOUT", "TELEGRAM_BOT_TOKEN", "TELEGRAM_CHAT_ID",
	"NOTIFY_QUEUE_SIZE", "NOTIFY_WORKERS", "NOTIFY_OVERFLOW", "OVERDUE_SWEEP_INTERVAL",
	"OTEL_EXPORTER_OTLP_ENDPOINT",
}

func clearEnv(t *testing.T) {
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("PAYMENT_GATEWAY_URL", "https://api.stripe.com")
	t.Setenv("PAYMENT_GATEWAY_API_KEY", "sk_test")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "sqlite", cfg.DatabaseDriver)
	assert.True(t, decimal.NewFromInt(2).Equal(cfg.FineMultiplier))
	assert.Equal(t, 10*time.Second, cfg.GatewayTimeout)
	assert.Equal(t, "block", cfg.NotifyOverflow)
	assert.Equal(t, 24*time.Hour, cfg.OverdueSweepInterval)
	assert.Equal(t, GatewayHTTP, cfg.Gateway)
	assert.False(t, cfg.FakeAutoPay)
}

func TestLoadGatewaySelection(t *testing.T) {
	clearEnv(t)
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PAYMENT_GATEWAY_URL")

	t.Setenv("PAYMENT_GATEWAY", "fake")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, GatewayFake, cfg.Gateway)
	assert.False(t, cfg.FakeAutoPay)

	t.Setenv("PAYMENT_GATEWAY_AUTOPAY", "true")
	cfg, err = Load()
	require.NoError(t, err)
	assert.True(t, cfg.FakeAutoPay)

	t.Setenv("PAYMENT_GATEWAY", "http")
	t.Setenv("PAYMENT_GATEWAY_URL", "https://api.stripe.com")
	t.Setenv("PAYMENT_GATEWAY_API_KEY", "sk_test")
	_, err = Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PAYMENT_GATEWAY_AUTOPAY")

	t.Setenv("PAYMENT_GATEWAY", "paypal")
	t.Setenv("PAYMENT_GATEWAY_AUTOPAY", "")
	_, err = Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown gateway")
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_DRIVER", "pgx")
	t.Setenv("FINE_MULTIPLIER", "1.5")
	t.Setenv("PAYMENT_GATEWAY_URL", "https://api.stripe.com")
	t.Setenv("PAYMENT_GATEWAY_API_KEY", "sk_test")
	t.Setenv("NOTIFY_OVERFLOW", "drop-oldest")
	t.Setenv("NOTIFY_WORKERS", "4")
	t.Setenv("OVERDUE_SWEEP_INTERVAL", "1h")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "pgx", cfg.DatabaseDriver)
	assert.Equal(t, "1.5", cfg.FineMultiplier.String())
	assert.Equal(t, "drop-oldest", cfg.NotifyOverflow)
	assert.Equal(t, 4, cfg.NotifyWorkers)
	assert.Equal(t, time.Hour, cfg.OverdueSweepInterval)
}

func TestLoadReportsEveryInvalidValue(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_DRIVER", "mysql")
	t.Setenv("FINE_MULTIPLIER", "-1")
	t.Setenv("NOTIFY_WORKERS", "many")
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")

	_, err := Load()
	require.Error(t, err)
	for _, k := range []string{"DATABASE_DRIVER", "FINE_MULTIPLIER", "NOTIFY_WORKERS", "TELEGRAM_CHAT_ID"} {
		assert.Contains(t, err.Error(), k)
	}
}
