package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/shopspring/decimal"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	CORSAllowedOrigins []string

	// Delivery pricing.
	FreeDeliveryRadiusKM  decimal.Decimal
	DeliveryPerKMCharge   decimal.Decimal
	DeliveryMinSurcharge  decimal.Decimal
	ExpressDeliveryCharge decimal.Decimal

	IdempotencyTTL       time.Duration
	OrderRateLimitMax    int
	OrderRateLimitWindow time.Duration

	QueueRedisPrefix  string
	QueueMaxAttempts  int
	WorkerConcurrency int
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		FreeDeliveryRadiusKM:  parseDecimal(k.String("FREE_DELIVERY_RADIUS_KM"), "2.5"),
		DeliveryPerKMCharge:   parseDecimal(k.String("DELIVERY_PER_KM_CHARGE"), "5"),
		DeliveryMinSurcharge:  parseDecimal(k.String("DELIVERY_MIN_SURCHARGE"), "20"),
		ExpressDeliveryCharge: parseDecimal(k.String("EXPRESS_DELIVERY_CHARGE"), "30"),

		IdempotencyTTL:       parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		OrderRateLimitMax:    parseInt(k.String("ORDER_RATE_LIMIT_MAX"), 30),
		OrderRateLimitWindow: parseDuration(k.String("ORDER_RATE_LIMIT_WINDOW"), "1m"),

		QueueRedisPrefix:  valueOrDefault(k.String("QUEUE_REDIS_PREFIX"), "apotek"),
		QueueMaxAttempts:  parseInt(k.String("QUEUE_MAX_ATTEMPTS"), 10),
		WorkerConcurrency: parseInt(k.String("WORKER_CONCURRENCY"), 4),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.FreeDeliveryRadiusKM.IsNegative() {
		return nil, errors.New("FREE_DELIVERY_RADIUS_KM must not be negative")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseInt(value string, fallback int) int {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	var parsed int
	if _, err := fmt.Sscanf(trimmed, "%d", &parsed); err != nil {
		return fallback
	}
	return parsed
}

func parseDecimal(value, fallback string) decimal.Decimal {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := decimal.NewFromString(base)
	if err != nil {
		d, _ = decimal.NewFromString(fallback)
	}
	return d
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
