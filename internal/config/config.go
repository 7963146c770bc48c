package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"

	"github.com/noah-isme/backend-promo/internal/catalog"
	"github.com/noah-isme/backend-promo/internal/pricing"
	"github.com/noah-isme/backend-promo/internal/promotion"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	CORSAllowedOrigins []string
	DBAutoMigrate      bool

	CartTTL          time.Duration
	CartLockTTL      time.Duration
	LockRetryBackoff time.Duration
	LockMaxWait      time.Duration
	IdempotencyTTL   time.Duration
	RateLimit        string

	PromoCacheTTL              time.Duration
	CatalogTimeout             time.Duration
	CatalogBreakerMinRequests  int
	CatalogBreakerFailureRatio float64
	CatalogBreakerOpenFor      time.Duration

	PricingScale       int32
	PricingRounding    pricing.Rounding
	PricingStacking    promotion.Stacking
	PricingOrderPolicy pricing.OrderPolicy

	QueueName        string
	QueueConcurrency int
	QueueMaxRetry    int
	PromoWarmTargets []catalog.Target
	PromoWarmSpec    string
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
		DBAutoMigrate:      parseBool(k.String("DB_AUTO_MIGRATE")),

		CartTTL:          parseDuration(k.String("CART_TTL"), "168h"),
		CartLockTTL:      parseDuration(k.String("CART_LOCK_TTL"), "10s"),
		LockRetryBackoff: parseDuration(k.String("LOCK_RETRY_BACKOFF"), "25ms"),
		LockMaxWait:      parseDuration(k.String("LOCK_MAX_WAIT"), "2s"),
		IdempotencyTTL:   parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		RateLimit:        valueOrDefault(k.String("RATE_LIMIT"), "120-M"),

		PromoCacheTTL:              parseDuration(k.String("PROMO_CACHE_TTL"), "5m"),
		CatalogTimeout:             parseDuration(k.String("CATALOG_TIMEOUT"), "2s"),
		CatalogBreakerMinRequests:  parseInt(k.String("CATALOG_BREAKER_MIN_REQUESTS"), 5),
		CatalogBreakerFailureRatio: parseFloat(k.String("CATALOG_BREAKER_FAILURE_RATIO"), 0.5),
		CatalogBreakerOpenFor:      parseDuration(k.String("CATALOG_BREAKER_OPEN_FOR"), "30s"),

		QueueName:        valueOrDefault(k.String("QUEUE_NAME"), "default"),
		QueueConcurrency: parseInt(k.String("QUEUE_CONCURRENCY"), 10),
		QueueMaxRetry:    parseInt(k.String("QUEUE_MAX_RETRY"), 8),
		PromoWarmSpec:    valueOrDefault(k.String("PROMO_WARM_SPEC"), "@every 5m"),
	}

	scale := parseInt(k.String("PRICING_SCALE"), 2)
	if scale < 0 || scale > 8 {
		return nil, fmt.Errorf("PRICING_SCALE must be between 0 and 8, got %d", scale)
	}
	cfg.PricingScale = int32(scale)

	var err error
	if cfg.PricingRounding, err = pricing.ParseRounding(k.String("PRICING_ROUNDING")); err != nil {
		return nil, fmt.Errorf("PRICING_ROUNDING: %w", err)
	}
	if cfg.PricingStacking, err = promotion.ParseStacking(k.String("PRICING_STACKING")); err != nil {
		return nil, fmt.Errorf("PRICING_STACKING: %w", err)
	}
	if cfg.PricingOrderPolicy, err = pricing.ParseOrderPolicy(k.String("PRICING_ORDER_POLICY")); err != nil {
		return nil, fmt.Errorf("PRICING_ORDER_POLICY: %w", err)
	}
	if cfg.PromoWarmTargets, err = catalog.ParseTargets(k.String("PROMO_WARM_TARGETS")); err != nil {
		return nil, fmt.Errorf("PROMO_WARM_TARGETS: %w", err)
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
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

// PricingConfig returns the pricing engine settings.
func (c *Config) PricingConfig() pricing.Config {
	return pricing.Config{
		Stacking:    c.PricingStacking,
		OrderPolicy: c.PricingOrderPolicy,
		Rounding:    c.PricingRounding,
		Scale:       c.PricingScale,
	}
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
		return strings.TrimSpace(value)
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
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func parseFloat(value string, fallback float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
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
