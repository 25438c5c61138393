// Package config loads server settings from the environment, reading a .env
// file first when one is present.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	Port int

	// DBDriver selects the store: "sqlite" (default) or "postgres".
	DBDriver    string
	DBPath      string
	DatabaseURL string

	JWTSecret string
	JWTTTL    time.Duration

	// Notification sinks; each is disabled when empty.
	RedisAddr    string
	RedisChannel string
	KafkaBrokers []string
	KafkaTopic   string
	WebhookURL   string
	EventBuffer  int

	// FXBase and FXRates configure the static conversion table used for
	// cross-group summaries, e.g. FX_RATES="EUR=0.92,GBP=0.79".
	FXBase  string
	FXRates string

	// LockTimeout bounds how long a mutation waits for its group.
	LockTimeout time.Duration
}

// Load reads .env (if any) and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, relying on environment")
	}

	port, err := getEnvInt("PORT", 8080)
	if err != nil {
		return nil, err
	}
	jwtTTL, err := getEnvDuration("JWT_TTL", 24*time.Hour)
	if err != nil {
		return nil, err
	}
	lockTimeout, err := getEnvDuration("LOCK_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}
	eventBuffer, err := getEnvInt("EVENT_BUFFER", 256)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:         port,
		DBDriver:     strings.ToLower(getEnv("DB_DRIVER", DriverSQLite)),
		DBPath:       getEnv("DB_PATH", "./data/ledger.db"),
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		JWTSecret:    getEnv("JWT_SECRET", ""),
		JWTTTL:       jwtTTL,
		RedisAddr:    getEnv("REDIS_ADDR", ""),
		RedisChannel: getEnv("REDIS_CHANNEL", "groupledger.events"),
		KafkaBrokers: splitList(getEnv("KAFKA_BROKERS", "")),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "groupledger.events"),
		WebhookURL:   getEnv("WEBHOOK_URL", ""),
		EventBuffer:  eventBuffer,
		FXBase:       getEnv("FX_BASE", "USD"),
		FXRates:      getEnv("FX_RATES", ""),
		LockTimeout:  lockTimeout,
	}
	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	switch c.DBDriver {
	case DriverSQLite:
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when DB_DRIVER=%s", DriverPostgres)
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.EventBuffer < 1 {
		return fmt.Errorf("EVENT_BUFFER must be positive")
	}
	return nil
}

// getEnv returns the variable or fallback when it is unset or empty.
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
