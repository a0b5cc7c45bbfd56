// Package config holds the engine's runtime configuration, populated from
// environment variables the way the teacher's cmd/server/main.go does
// (plain getEnv helpers, no configuration framework).
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Config aggregates every tunable named in spec §6.4.
type Config struct {
	Environment string

	Postgres PostgresConfig
	Redis    RedisConfig

	Trading  TradingConfig
	Router   RouterConfig
	TWAP     TWAPConfig
	VWAP     VWAPConfig
	Monitor  MonitorConfig
	Breaker  BreakerConfig
	Sizing   SizingConfig
	Slippage SlippageConfig

	AuditLogPath string
}

// PostgresConfig holds connection settings for the position/trade/snapshot
// store.
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
}

// RedisConfig holds connection settings for the quote cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// TradingConfig mirrors spec §6.4's PaperTrader-level options.
type TradingConfig struct {
	InitialCash                  decimal.Decimal
	CommissionPerTrade           decimal.Decimal
	CommissionPerShare           decimal.Decimal
	MinSlippage                  decimal.Decimal
	SlippageVolatilityMultiplier decimal.Decimal
	EnforceMarketHours           bool
}

// RouterConfig mirrors spec §6.4's router strategy boundaries.
type RouterConfig struct {
	SmallOrderThreshold decimal.Decimal
	LargeOrderThreshold decimal.Decimal
}

// TWAPConfig mirrors spec §6.4's TWAP defaults.
type TWAPConfig struct {
	DefaultWindowMinutes  int
	DefaultNumSlices      int
	TimingRandomization   bool
}

// VWAPConfig mirrors spec §6.4's VWAP defaults.
type VWAPConfig struct {
	DeviationThreshold decimal.Decimal
}

// MonitorConfig mirrors spec §6.4's alert thresholds.
type MonitorConfig struct {
	SlippageThresholdBps          decimal.Decimal
	VWAPDeviationThreshold        decimal.Decimal
	FailedOrderThreshold          int
	SlowExecutionThresholdMinutes int
}

// BreakerConfig mirrors spec §4.4's five thresholds.
type BreakerConfig struct {
	DailyLossLimit       decimal.Decimal
	MaxDrawdownLimit     decimal.Decimal
	ConsecutiveLossLimit int
	VolatilityThreshold  decimal.Decimal
	RapidDrawdownLimit   decimal.Decimal
	RapidDrawdownWindow  time.Duration
	AutoResetHours       time.Duration
}

// SizingConfig mirrors spec §4.2's Kelly cap pipeline configuration.
type SizingConfig struct {
	MaxPositionPct   decimal.Decimal
	MaxTotalExposure decimal.Decimal
	MinPositionSize  decimal.Decimal
	MaxPositionSize  decimal.Decimal
}

// SlippageConfig mirrors spec §4.1's model coefficients.
type SlippageConfig struct {
	BaseSpreadBps decimal.Decimal
	ImpactCoef    decimal.Decimal
	MaxImpactBps  decimal.Decimal
}

// Load populates Config from environment variables, falling back to the
// spec's stated defaults for anything unset.
func Load() Config {
	return Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Postgres: PostgresConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			Database: getEnv("DB_NAME", "tradecore"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Trading: TradingConfig{
			InitialCash:                  getEnvDecimal("INITIAL_CASH", decimal.NewFromInt(100000)),
			CommissionPerTrade:           getEnvDecimal("COMMISSION_PER_TRADE", decimal.NewFromInt(1)),
			CommissionPerShare:           getEnvDecimal("COMMISSION_PER_SHARE", decimal.NewFromFloat(0.005)),
			MinSlippage:                  getEnvDecimal("MIN_SLIPPAGE", decimal.NewFromFloat(0.0001)),
			SlippageVolatilityMultiplier: getEnvDecimal("SLIPPAGE_VOLATILITY_MULTIPLIER", decimal.NewFromInt(1)),
			EnforceMarketHours:           getEnvBool("ENFORCE_MARKET_HOURS", false),
		},
		Router: RouterConfig{
			SmallOrderThreshold: getEnvDecimal("ROUTER_SMALL_ORDER_THRESHOLD", decimal.NewFromInt(10000)),
			LargeOrderThreshold: getEnvDecimal("ROUTER_LARGE_ORDER_THRESHOLD", decimal.NewFromInt(100000)),
		},
		TWAP: TWAPConfig{
			DefaultWindowMinutes: getEnvInt("TWAP_DEFAULT_WINDOW_MINUTES", 60),
			DefaultNumSlices:     getEnvInt("TWAP_DEFAULT_NUM_SLICES", 10),
			TimingRandomization:  getEnvBool("TWAP_TIMING_RANDOMIZATION", true),
		},
		VWAP: VWAPConfig{
			DeviationThreshold: getEnvDecimal("VWAP_DEVIATION_THRESHOLD", decimal.NewFromFloat(0.005)),
		},
		Monitor: MonitorConfig{
			SlippageThresholdBps:          getEnvDecimal("MONITOR_SLIPPAGE_THRESHOLD_BPS", decimal.NewFromInt(20)),
			VWAPDeviationThreshold:        getEnvDecimal("MONITOR_VWAP_DEVIATION_THRESHOLD", decimal.NewFromFloat(0.01)),
			FailedOrderThreshold:          getEnvInt("MONITOR_FAILED_ORDER_THRESHOLD", 3),
			SlowExecutionThresholdMinutes: getEnvInt("MONITOR_SLOW_EXECUTION_THRESHOLD_MINUTES", 120),
		},
		Breaker: BreakerConfig{
			DailyLossLimit:       getEnvDecimal("BREAKER_DAILY_LOSS_LIMIT", decimal.NewFromFloat(0.03)),
			MaxDrawdownLimit:     getEnvDecimal("BREAKER_MAX_DRAWDOWN_LIMIT", decimal.NewFromFloat(0.10)),
			ConsecutiveLossLimit: getEnvInt("BREAKER_CONSECUTIVE_LOSS_LIMIT", 5),
			VolatilityThreshold:  getEnvDecimal("BREAKER_VOLATILITY_THRESHOLD", decimal.NewFromInt(40)),
			RapidDrawdownLimit:   getEnvDecimal("BREAKER_RAPID_DRAWDOWN_LIMIT", decimal.NewFromFloat(0.05)),
			RapidDrawdownWindow:  getEnvDuration("BREAKER_RAPID_DRAWDOWN_WINDOW", 60*time.Minute),
			AutoResetHours:       getEnvDuration("BREAKER_AUTO_RESET_HOURS", 24*time.Hour),
		},
		Sizing: SizingConfig{
			MaxPositionPct:   getEnvDecimal("SIZING_MAX_POSITION_PCT", decimal.NewFromFloat(0.25)),
			MaxTotalExposure: getEnvDecimal("SIZING_MAX_TOTAL_EXPOSURE", decimal.NewFromFloat(1.0)),
			MinPositionSize:  getEnvDecimal("SIZING_MIN_POSITION_SIZE", decimal.NewFromInt(100)),
			MaxPositionSize:  getEnvDecimal("SIZING_MAX_POSITION_SIZE", decimal.NewFromInt(50000)),
		},
		Slippage: SlippageConfig{
			BaseSpreadBps: getEnvDecimal("SLIPPAGE_BASE_SPREAD_BPS", decimal.NewFromInt(5)),
			ImpactCoef:    getEnvDecimal("SLIPPAGE_IMPACT_COEF", decimal.NewFromFloat(0.1)),
			MaxImpactBps:  getEnvDecimal("SLIPPAGE_MAX_IMPACT_BPS", decimal.NewFromInt(100)),
		},
		AuditLogPath: getEnv("AUDIT_LOG_PATH", "./data/audit.log"),
	}
}

func (p PostgresConfig) DSN() string {
	return "postgresql://" + p.User + ":" + p.Password + "@" + p.Host + ":" + p.Port + "/" + p.Database + "?sslmode=" + p.SSLMode
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func getEnvDecimal(key string, fallback decimal.Decimal) decimal.Decimal {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return fallback
	}
	return d
}
