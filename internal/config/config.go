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
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	CORSAllowedOrigins []string

	JWTSecret   string
	JWTIssuer   string
	JWTAudience string

	// Tenant resolution.
	TenantHeader     string
	TenantRootDomain string
	DefaultTenant    string

	// Checkout.
	CheckoutTimeout    time.Duration
	OrderNumberRetries int

	// Tax, as REGION:basis-points pairs, e.g. "JB:1100,JK:1000".
	TaxRates      map[string]int
	TaxDefaultBps int

	// Shipping table rates in minor units.
	ShippingStandardCents int64
	ShippingExpressCents  int64
	ShippingFreeOverCents int64

	// Webhook fan-out. Empty disables delivery.
	WebhookEndpoint string

	AuditEnabled      bool
	AuditSamplingRate float64

	// RateLimit uses the limiter formatted-rate syntax, e.g. "120-M".
	RateLimit string

	MetricsNamespace string
	OTLPEndpoint     string
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

		JWTSecret:   k.String("JWT_SECRET"),
		JWTIssuer:   valueOrDefault(k.String("JWT_ISSUER"), "storelane"),
		JWTAudience: strings.TrimSpace(k.String("JWT_AUDIENCE")),

		TenantHeader:     valueOrDefault(k.String("TENANT_HEADER"), "X-Tenant-ID"),
		TenantRootDomain: strings.TrimSpace(k.String("TENANT_ROOT_DOMAIN")),
		DefaultTenant:    strings.TrimSpace(k.String("TENANT_DEFAULT")),

		CheckoutTimeout:    parseDuration(k.String("CHECKOUT_TIMEOUT"), "10s"),
		OrderNumberRetries: parseInt(k.String("ORDER_NUMBER_RETRIES"), 3),

		TaxRates:      parseRates(k.String("TAX_RATES")),
		TaxDefaultBps: parseInt(k.String("TAX_DEFAULT_BPS"), 0),

		ShippingStandardCents: parseInt64(k.String("SHIPPING_STANDARD_CENTS"), 599),
		ShippingExpressCents:  parseInt64(k.String("SHIPPING_EXPRESS_CENTS"), 1499),
		ShippingFreeOverCents: parseInt64(k.String("SHIPPING_FREE_OVER_CENTS"), 0),

		WebhookEndpoint: strings.TrimSpace(k.String("WEBHOOK_ENDPOINT")),

		AuditEnabled:      parseBoolDefault(k.String("AUDIT_ENABLED"), true),
		AuditSamplingRate: parseFloat(k.String("AUDIT_SAMPLING_RATE"), 1),

		RateLimit: valueOrDefault(k.String("RATE_LIMIT"), "120-M"),

		MetricsNamespace: valueOrDefault(k.String("METRICS_NAMESPACE"), "backoffice"),
		OTLPEndpoint:     strings.TrimSpace(k.String("OTEL_EXPORTER_OTLP_ENDPOINT")),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
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

// parseRates reads comma-separated REGION:bps pairs. Malformed pairs are
// skipped rather than failing startup.
func parseRates(value string) map[string]int {
	out := map[string]int{}
	for _, pair := range splitAndTrim(value) {
		region, raw, found := strings.Cut(pair, ":")
		if !found {
			continue
		}
		bps, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || bps < 0 {
			continue
		}
		out[strings.ToUpper(strings.TrimSpace(region))] = bps
	}
	return out
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
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func parseInt64(value string, fallback int64) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
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

func parseBoolDefault(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
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
