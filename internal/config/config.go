package config

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/chacha20poly1305"
)

// Config is the full runtime configuration, loaded once at startup from
// the environment (a .env file is honoured in development).
type Config struct {
	Environment string
	HTTPAddr    string

	DBDriver string
	DBDSN    string

	JWTSecret string

	UseStaticCodes bool
	StaticCodeKey  string

	LockAPIBaseURL   string
	LockAPIKey       string
	LockPollInterval time.Duration
	LockPollTimeout  time.Duration

	RedisAddr     string
	RedisPassword string

	ManageBaseURL string
	PromoPricing  bool

	APIRateLimitRPM int

	OTELServiceName           string
	OTELEnvironment           string
	OTELExporterOTLPEndpoint  string
	OTELExporterOTLPInsecure  bool
	OTELMetricsEnabled        bool
	OTELTracingEnabled        bool
	OTELLogsEnabled           bool
	OTELMetricsExportInterval time.Duration
}

// Load reads the configuration from the environment and validates it.
// Every load is counted, with failures classified, so bad rollouts show
// up immediately on the config.validation.events counter.
func Load(ctx context.Context) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		HTTPAddr:    getEnv("HTTP_ADDR", ":8080"),

		DBDriver: getEnv("DB_DRIVER", "sqlite"),
		DBDSN:    getEnv("DB_DSN", "file:pod-access.db"),

		JWTSecret: os.Getenv("JWT_SECRET"),

		UseStaticCodes: getEnvBool("USE_STATIC_CODES", false),
		StaticCodeKey:  os.Getenv("STATIC_CODE_KEY"),

		LockAPIBaseURL:   os.Getenv("LOCK_API_BASE_URL"),
		LockAPIKey:       os.Getenv("LOCK_API_KEY"),
		LockPollInterval: getEnvDuration("LOCK_POLL_INTERVAL", time.Second),
		LockPollTimeout:  getEnvDuration("LOCK_POLL_TIMEOUT", 2*time.Minute),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		ManageBaseURL: getEnv("MANAGE_BASE_URL", "http://localhost:3000"),
		PromoPricing:  getEnvBool("PROMO_PRICING", false),

		APIRateLimitRPM: getEnvInt("API_RATE_LIMIT_RPM", 120),

		OTELServiceName:           getEnv("OTEL_SERVICE_NAME", "pod-access-service"),
		OTELEnvironment:           getEnv("OTEL_ENVIRONMENT", "development"),
		OTELExporterOTLPEndpoint:  getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTELExporterOTLPInsecure:  getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		OTELMetricsEnabled:        getEnvBool("OTEL_METRICS_ENABLED", false),
		OTELTracingEnabled:        getEnvBool("OTEL_TRACING_ENABLED", false),
		OTELLogsEnabled:           getEnvBool("OTEL_LOGS_ENABLED", false),
		OTELMetricsExportInterval: getEnvDuration("OTEL_METRICS_EXPORT_INTERVAL", 30*time.Second),
	}

	if err := cfg.validate(); err != nil {
		err = fmt.Errorf("validate config: %w", err)
		recordConfigValidationEvent(ctx, cfg.Environment, "failure", classifyConfigLoadError(err))
		return nil, err
	}
	recordConfigValidationEvent(ctx, cfg.Environment, "success", "none")
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error

	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	switch c.DBDriver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER %q is not supported", c.DBDriver))
	}

	if c.UseStaticCodes {
		if c.StaticCodeKey == "" {
			errs = append(errs, errors.New("STATIC_CODE_KEY is required when USE_STATIC_CODES is set"))
		} else if key, err := base64.URLEncoding.DecodeString(c.StaticCodeKey); err != nil {
			errs = append(errs, fmt.Errorf("parse STATIC_CODE_KEY: %w", err))
		} else if len(key) != chacha20poly1305.KeySize {
			errs = append(errs, fmt.Errorf("STATIC_CODE_KEY must decode to %d bytes", chacha20poly1305.KeySize))
		}
	} else {
		if c.LockAPIBaseURL == "" {
			errs = append(errs, errors.New("LOCK_API_BASE_URL is required when USE_STATIC_CODES is unset"))
		}
		if c.LockAPIKey == "" {
			errs = append(errs, errors.New("LOCK_API_KEY is required when USE_STATIC_CODES is unset"))
		}
	}

	if c.LockPollInterval <= 0 {
		errs = append(errs, errors.New("LOCK_POLL_INTERVAL must be positive"))
	}
	if c.LockPollTimeout <= 0 {
		errs = append(errs, errors.New("LOCK_POLL_TIMEOUT must be positive"))
	}

	return errors.Join(errs...)
}

// IsProduction reports whether the service runs with the production
// profile.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
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
