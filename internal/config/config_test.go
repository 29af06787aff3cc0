package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PAYMENTS_OUTBOX_BATCH", "not-a-number")
	t.Setenv("GATEWAY_TIMEOUT", "soon")
	t.Setenv("LOG_LEVEL", "loud")
	t.Setenv("SAAS_APPLICATION_FEE_PERCENT", "five")

	cfg := Load()
	assert.Equal(t, 32, cfg.OutboxBatch)
	assert.Equal(t, 10*time.Second, cfg.GatewayTimeout)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.True(t, cfg.ApplicationFeePercent.IsZero())
	assert.NotEmpty(t, cfg.StatusQueue)
	assert.Empty(t, cfg.AdminToken)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PAYMENTS_HTTP_ADDR", ":9090")
	t.Setenv("BROKER", "SQS")
	t.Setenv("PAYMENTS_SQS_QUEUE_URL", "https://sqs.ap-south-1.amazonaws.com/123/payments")
	t.Setenv("PAYMENTS_OUTBOX_INTERVAL", "500ms")
	t.Setenv("PAYMENTS_OUTBOX_BATCH", "64")
	t.Setenv("PAYMENTS_ADMIN_TOKEN", "org-secret")
	t.Setenv("RAZORPAY_KEY_ID", "rzp_live_x")
	t.Setenv("RAZORPAY_WEBHOOK_SECRET", "whsec")
	t.Setenv("GATEWAY_TIMEOUT", "3s")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("SAAS_APPLICATION_FEE_PERCENT", "2.5")
	t.Setenv("SAAS_APPLICATION_FEE_FIXED", " 0.30 ")

	cfg := Load()
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, BrokerSQS, cfg.Broker)
	assert.Equal(t, "https://sqs.ap-south-1.amazonaws.com/123/payments", cfg.SQSQueueURL)
	assert.Equal(t, 500*time.Millisecond, cfg.OutboxInterval)
	assert.Equal(t, 64, cfg.OutboxBatch)
	assert.Equal(t, "org-secret", cfg.AdminToken)
	assert.Equal(t, "rzp_live_x", cfg.RazorpayKeyID)
	assert.Equal(t, "whsec", cfg.RazorpayWebhookSecret)
	assert.Equal(t, 3*time.Second, cfg.GatewayTimeout)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.True(t, decimal.RequireFromString("2.5").Equal(cfg.ApplicationFeePercent))
	assert.True(t, decimal.RequireFromString("0.3").Equal(cfg.ApplicationFeeFixed))
}
