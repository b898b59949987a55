package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vasiliy-maslov/modest-storefront/internal/config"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("DB_USER", "postgres")
	t.Setenv("DB_NAME", "storefront")
	t.Setenv("PAYMENT_API_URL", "https://api.payments.test")
	t.Setenv("PAYMENT_API_KEY", "sk_test")
	t.Setenv("PAYMENT_MERCHANT_CODE", "MC123")
	t.Setenv("WHATSAPP_PHONE", "+33 6 12 34 56 78")
	t.Setenv("ADMIN_USERNAME", "admin")
	t.Setenv("ADMIN_PASSWORD_HASH", "$2a$10$abcdefghijklmnopqrstuv")
}

func TestNewConfig_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := config.NewConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.App.Port)
	assert.Equal(t, "5432", cfg.Postgres.Port)
	assert.Equal(t, "disable", cfg.Postgres.SSLMode)
	assert.Equal(t, int32(10), cfg.Postgres.MaxConns)
	assert.Equal(t, 30*time.Minute, cfg.Postgres.MaxConnLifetime)
	assert.Equal(t, "EUR", cfg.Payment.Currency)
	assert.Equal(t, "fr", cfg.Messaging.Language)
	assert.True(t, cfg.Shipping.FlatRate.IsZero())
	assert.Nil(t, cfg.Shipping.FreeShippingThreshold)
}

func TestNewConfig_EnvOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("APP_PORT", "9090")
	t.Setenv("DB_MAX_CONNS", "20")
	t.Setenv("DB_MAX_CONN_LIFETIME", "1h")
	t.Setenv("SHIPPING_FLAT_RATE", "4.90")
	t.Setenv("FREE_SHIPPING_THRESHOLD", "60")

	cfg, err := config.NewConfig()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.App.Port)
	assert.Equal(t, int32(20), cfg.Postgres.MaxConns)
	assert.Equal(t, time.Hour, cfg.Postgres.MaxConnLifetime)
	assert.True(t, decimal.RequireFromString("4.90").Equal(cfg.Shipping.FlatRate))
	require.NotNil(t, cfg.Shipping.FreeShippingThreshold)
	assert.True(t, decimal.NewFromInt(60).Equal(*cfg.Shipping.FreeShippingThreshold))
}

func TestNewConfig_YAMLFileThenEnv(t *testing.T) {
	setRequiredEnv(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
app:
  port: "7000"
  log_level: debug
messaging:
  language: en
shipping:
  flat_rate: "5"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("APP_PORT", "7001")

	cfg, err := config.NewConfig()
	require.NoError(t, err)

	assert.Equal(t, "7001", cfg.App.Port, "env wins over file")
	assert.Equal(t, "debug", cfg.App.LogLevel)
	assert.Equal(t, "en", cfg.Messaging.Language)
	assert.True(t, decimal.NewFromInt(5).Equal(cfg.Shipping.FlatRate))
}

func TestNewConfig_MissingRequired(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("DB_HOST", "")
	t.Setenv("PAYMENT_API_KEY", "")

	_, err := config.NewConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_HOST")
	assert.Contains(t, err.Error(), "PAYMENT_API_KEY")
}

func TestNewConfig_InvalidShippingRate(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SHIPPING_FLAT_RATE", "free")

	_, err := config.NewConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHIPPING_FLAT_RATE")
}
