// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"lotto-ledger/pkg/db" // Import db package for its Config struct
)

// AppConfig holds all application-wide configurations.
type AppConfig struct {
	ServerPort string
	LogLevel   string
	LogFormat  string
	DB         db.Config
	Redis      RedisConfig
	Ledger     LedgerConfig
}

// RedisConfig configures the optional payment limit cache. An empty Addr
// disables the cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	LimitTTL time.Duration
}

// LedgerConfig holds the money rules that vary per deployment.
type LedgerConfig struct {
	DefaultCurrency                  string
	AgentUnitValue                   decimal.Decimal
	AgentPayoutCommissionPercent     decimal.Decimal
	AgentDefaultBetCommissionPercent decimal.Decimal
	StaffDefaultBetCommissionPercent decimal.Decimal
	DefaultPaymentLimit              decimal.Decimal
	CancellationWindow               time.Duration
	CancellationFeePercent           decimal.Decimal
	TxMaxAttempts                    int
	TxRetryBackoff                   time.Duration
}

// LoadConfig loads configuration from environment variables, after reading
// a .env file from the working directory when one exists.
// It returns an AppConfig instance or an error if any variable is invalid.
func LoadConfig() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}
	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	txAttempts, err := strconv.Atoi(getEnv("LEDGER_TX_MAX_ATTEMPTS", "3"))
	if err != nil {
		return nil, fmt.Errorf("invalid LEDGER_TX_MAX_ATTEMPTS: %w", err)
	}

	cfg := &AppConfig{
		ServerPort: getEnv("SERVER_PORT", "8080"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		LogFormat:  getEnv("LOG_FORMAT", "json"),
		DB: db.Config{
			Driver:   getEnv("DB_DRIVER", db.DriverPostgres),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("DB_USER", "user"),
			Password: getEnv("DB_PASSWORD", "password"),
			DBName:   getEnv("DB_NAME", "lottodb"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			Path:     getEnv("DB_PATH", "lotto.db"),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Ledger: LedgerConfig{
			DefaultCurrency: getEnv("LEDGER_DEFAULT_CURRENCY", "XAF"),
			TxMaxAttempts:   txAttempts,
		},
	}

	decimals := []struct {
		key, def string
		dst      *decimal.Decimal
	}{
		{"LEDGER_AGENT_UNIT_VALUE", "1", &cfg.Ledger.AgentUnitValue},
		{"LEDGER_AGENT_PAYOUT_COMMISSION_PERCENT", "2", &cfg.Ledger.AgentPayoutCommissionPercent},
		{"LEDGER_AGENT_BET_COMMISSION_PERCENT", "0", &cfg.Ledger.AgentDefaultBetCommissionPercent},
		{"LEDGER_STAFF_BET_COMMISSION_PERCENT", "0", &cfg.Ledger.StaffDefaultBetCommissionPercent},
		{"LEDGER_DEFAULT_PAYMENT_LIMIT", "50000", &cfg.Ledger.DefaultPaymentLimit},
		{"LEDGER_CANCELLATION_FEE_PERCENT", "0", &cfg.Ledger.CancellationFeePercent},
	}
	for _, d := range decimals {
		v, err := decimal.NewFromString(getEnv(d.key, d.def))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", d.key, err)
		}
		*d.dst = v
	}

	durations := []struct {
		key, def string
		dst      *time.Duration
	}{
		{"LEDGER_CANCELLATION_WINDOW", "15m", &cfg.Ledger.CancellationWindow},
		{"LEDGER_TX_RETRY_BACKOFF", "20ms", &cfg.Ledger.TxRetryBackoff},
		{"REDIS_LIMIT_TTL", "30s", &cfg.Redis.LimitTTL},
	}
	for _, d := range durations {
		v, err := time.ParseDuration(getEnv(d.key, d.def))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", d.key, err)
		}
		*d.dst = v
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks the ledger rules for values that would break invariants.
func (c *AppConfig) validate() error {
	hundred := decimal.NewFromInt(100)
	percents := map[string]decimal.Decimal{
		"LEDGER_AGENT_PAYOUT_COMMISSION_PERCENT": c.Ledger.AgentPayoutCommissionPercent,
		"LEDGER_AGENT_BET_COMMISSION_PERCENT":    c.Ledger.AgentDefaultBetCommissionPercent,
		"LEDGER_STAFF_BET_COMMISSION_PERCENT":    c.Ledger.StaffDefaultBetCommissionPercent,
		"LEDGER_CANCELLATION_FEE_PERCENT":        c.Ledger.CancellationFeePercent,
	}
	for key, p := range percents {
		if p.IsNegative() || p.GreaterThan(hundred) {
			return fmt.Errorf("%s must be within [0, 100], got %s", key, p)
		}
	}
	if c.Ledger.DefaultPaymentLimit.IsNegative() {
		return fmt.Errorf("LEDGER_DEFAULT_PAYMENT_LIMIT must not be negative")
	}
	stored := map[string]decimal.Decimal{
		"LEDGER_AGENT_UNIT_VALUE":      c.Ledger.AgentUnitValue,
		"LEDGER_DEFAULT_PAYMENT_LIMIT": c.Ledger.DefaultPaymentLimit,
	}
	for key, v := range stored {
		if !v.Equal(v.Round(4)) {
			return fmt.Errorf("%s must have at most 4 decimal places, got %s", key, v)
		}
	}
	if c.Ledger.CancellationWindow <= 0 {
		return fmt.Errorf("LEDGER_CANCELLATION_WINDOW must be positive")
	}
	if c.Ledger.TxMaxAttempts < 1 {
		return fmt.Errorf("LEDGER_TX_MAX_ATTEMPTS must be at least 1")
	}
	if c.Ledger.DefaultCurrency == "" {
		return fmt.Errorf("LEDGER_DEFAULT_CURRENCY is required")
	}
	return nil
}

// getEnv returns the value of the environment variable or a default value if not set.
func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
