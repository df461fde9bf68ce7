package config_test

import (
	"testing"
	"time"

	"github.com/SscSPs/credit_ledger_service/internal/platform/config"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "memory")

	cfg, err := config.LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, config.StorageMemory, cfg.StorageDriver)
	assert.True(t, cfg.DefaultCreditLimit.IsZero())
	assert.True(t, cfg.ReconciliationEpsilon.Equal(decimal.RequireFromString("0.01")))
	assert.Equal(t, 4380*time.Hour, cfg.PaymentPatternWindow)
	assert.Equal(t, "100-M", cfg.RateLimit)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORSAllowedOrigins)
	assert.Empty(t, cfg.KafkaBrokers)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "Postgres")
	t.Setenv("PGSQL_URL", "postgres://ledger@localhost/ledger")
	t.Setenv("DEFAULT_CREDIT_LIMIT", "1000000")
	t.Setenv("PAYMENT_PATTERN_WINDOW", "720h")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("KAFKA_BROKERS", "kafka:9092")

	cfg, err := config.LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, config.StoragePostgres, cfg.StorageDriver)
	assert.True(t, cfg.DefaultCreditLimit.Equal(decimal.NewFromInt(1000000)))
	assert.Equal(t, 720*time.Hour, cfg.PaymentPatternWindow)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, "kafka:9092", cfg.KafkaBrokers)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "unknown storage driver", env: map[string]string{"STORAGE_DRIVER": "mongo"}},
		{name: "negative credit limit", env: map[string]string{"STORAGE_DRIVER": "memory", "DEFAULT_CREDIT_LIMIT": "-1"}},
		{name: "malformed epsilon", env: map[string]string{"STORAGE_DRIVER": "memory", "RECONCILIATION_EPSILON": "abc"}},
		{name: "default secret in production", env: map[string]string{"STORAGE_DRIVER": "memory", "IS_PRODUCTION": "true", "JWT_SECRET": ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := config.LoadConfig()
			assert.Error(t, err)
		})
	}
}
