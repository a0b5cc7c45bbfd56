package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestLoad_DefaultsWhenEnvUnset(t *testing.T) {
	cfg := Load()
	assert.Equal(t, "development", cfg.Environment)
	assert.True(t, cfg.Trading.InitialCash.Equal(decimal.NewFromInt(100000)))
	assert.Equal(t, 60*time.Minute, cfg.Breaker.RapidDrawdownWindow)
	assert.Equal(t, 10, cfg.TWAP.DefaultNumSlices)
}

func TestLoad_OverridesFromEnv(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("INITIAL_CASH", "250000")
	t.Setenv("TWAP_DEFAULT_NUM_SLICES", "4")
	t.Setenv("ENFORCE_MARKET_HOURS", "true")
	t.Setenv("BREAKER_AUTO_RESET_HOURS", "2h")

	cfg := Load()
	assert.Equal(t, "production", cfg.Environment)
	assert.True(t, cfg.Trading.InitialCash.Equal(decimal.NewFromInt(250000)))
	assert.Equal(t, 4, cfg.TWAP.DefaultNumSlices)
	assert.True(t, cfg.Trading.EnforceMarketHours)
	assert.Equal(t, 2*time.Hour, cfg.Breaker.AutoResetHours)
}

func TestLoad_InvalidValuesFallBackToDefault(t *testing.T) {
	t.Setenv("TWAP_DEFAULT_NUM_SLICES", "not-a-number")
	t.Setenv("INITIAL_CASH", "not-a-decimal")
	t.Setenv("ENFORCE_MARKET_HOURS", "not-a-bool")

	cfg := Load()
	assert.Equal(t, 10, cfg.TWAP.DefaultNumSlices)
	assert.True(t, cfg.Trading.InitialCash.Equal(decimal.NewFromInt(100000)))
	assert.False(t, cfg.Trading.EnforceMarketHours)
}

func TestPostgresConfig_DSNFormatsConnectionString(t *testing.T) {
	p := PostgresConfig{Host: "db", Port: "5432", User: "u", Password: "p", Database: "tradecore", SSLMode: "disable"}
	assert.Equal(t, "postgresql://u:p@db:5432/tradecore?sslmode=disable", p.DSN())
}
