// Package config loads application settings from the environment.
// A .env file in the working directory is read first when present.
package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	// Server
	Port string
	Env  string

	// Database
	DBHost            string
	DBPort            string
	DBUser            string
	DBPassword        string
	DBName            string
	DBSSLMode         string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration

	// JWT
	JWTSecret        string
	JWTExpirationDur time.Duration

	// Ledger
	MaxDateRangeDays    int
	LedgerWriteAttempts int
	LedgerRetryBackoff  time.Duration

	// Read cache; disabled when RedisURL is empty.
	RedisURL string
	CacheTTL time.Duration

	// Entry events; disabled when AMQPURL is empty.
	AMQPURL      string
	AMQPExchange string
}

var appConfig *Config

var defaults = map[string]interface{}{
	"PORT":                  "8080",
	"ENV":                   "development",
	"DB_HOST":               "localhost",
	"DB_PORT":               "5432",
	"DB_USER":               "tally",
	"DB_PASSWORD":           "tally",
	"DB_NAME":               "tally",
	"DB_SSLMODE":            "disable",
	"DB_MAX_OPEN_CONNS":     100,
	"DB_MAX_IDLE_CONNS":     10,
	"DB_CONN_MAX_LIFETIME":  "1h",
	"JWT_SECRET":            "fallback-secret-key-for-dev-only",
	"JWT_EXPIRES_IN":        "24h",
	"MAX_DATE_RANGE_DAYS":   90,
	"LEDGER_WRITE_ATTEMPTS": 3,
	"LEDGER_RETRY_BACKOFF":  "25ms",
	"REDIS_URL":             "",
	"CACHE_TTL":             "10m",
	"AMQP_URL":              "",
	"AMQP_EXCHANGE":         "tally.entries",
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// A missing .env file is fine; the environment may be set directly.
	_ = godotenv.Load()

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	cfg := &Config{
		Port:           v.GetString("PORT"),
		Env:            v.GetString("ENV"),
		DBHost:         v.GetString("DB_HOST"),
		DBPort:         v.GetString("DB_PORT"),
		DBUser:         v.GetString("DB_USER"),
		DBPassword:     v.GetString("DB_PASSWORD"),
		DBName:         v.GetString("DB_NAME"),
		DBSSLMode:      v.GetString("DB_SSLMODE"),
		DBMaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		DBMaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		JWTSecret:      v.GetString("JWT_SECRET"),
		RedisURL:       v.GetString("REDIS_URL"),
		AMQPURL:        v.GetString("AMQP_URL"),
		AMQPExchange:   v.GetString("AMQP_EXCHANGE"),
	}

	var err error
	if cfg.DBConnMaxLifetime, err = duration(v, "DB_CONN_MAX_LIFETIME"); err != nil {
		return nil, err
	}
	if cfg.JWTExpirationDur, err = duration(v, "JWT_EXPIRES_IN"); err != nil {
		return nil, err
	}
	if cfg.LedgerRetryBackoff, err = duration(v, "LEDGER_RETRY_BACKOFF"); err != nil {
		return nil, err
	}
	if cfg.CacheTTL, err = duration(v, "CACHE_TTL"); err != nil {
		return nil, err
	}

	if cfg.MaxDateRangeDays, err = positiveInt(v, "MAX_DATE_RANGE_DAYS"); err != nil {
		return nil, err
	}
	if cfg.LedgerWriteAttempts, err = positiveInt(v, "LEDGER_WRITE_ATTEMPTS"); err != nil {
		return nil, err
	}

	appConfig = cfg
	return cfg, nil
}

// Get returns the application configuration, loading it on first use.
func Get() *Config {
	if appConfig == nil {
		cfg, err := Load()
		if err != nil {
			panic(fmt.Sprintf("failed to load configuration: %v", err))
		}
		appConfig = cfg
	}
	return appConfig
}

// Set replaces the active configuration.
func Set(cfg *Config) {
	appConfig = cfg
}

func duration(v *viper.Viper, key string) (time.Duration, error) {
	raw := v.GetString(key)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return d, nil
}

func positiveInt(v *viper.Viper, key string) (int, error) {
	raw := v.GetString(key)
	var n int
	if _, err := fmt.Sscanf(raw, "%d", &n); err != nil || n <= 0 || fmt.Sprint(n) != raw {
		return 0, fmt.Errorf("invalid %s value %q: must be a positive integer", key, raw)
	}
	return n, nil
}
