package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "tenantgate.yaml"

// DefaultEnvFile is loaded into the process environment when present.
// Variables already set in the environment are not overwritten.
const DefaultEnvFile = ".env"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	if err := godotenv.Load(DefaultEnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config env file: %w", err)
	}
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "TENANTGATE_PORT")
	setString(&cfg.Server.CORSOrigin, "TENANTGATE_CORS_ORIGIN")
	setString(&cfg.Server.RoleHeader, "TENANTGATE_ROLE_HEADER")

	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "TENANTGATE_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "TENANTGATE_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "TENANTGATE_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "TENANTGATE_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "TENANTGATE_PG_HEALTH_CHECK")

	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.NATS.EventsStream, "TENANTGATE_EVENTS_STREAM")

	// Cache
	setDuration(&cfg.Cache.TTL, "TENANTGATE_CACHE_TTL")
	setInt64(&cfg.Cache.L1MaxSizeMB, "TENANTGATE_CACHE_L1_SIZE_MB")
	setDuration(&cfg.Cache.L1TTL, "TENANTGATE_CACHE_L1_TTL")
	setString(&cfg.Cache.L2Bucket, "TENANTGATE_CACHE_L2_BUCKET")

	setDuration(&cfg.Resolver.StoreTimeout, "TENANTGATE_RESOLVER_STORE_TIMEOUT")

	setInt(&cfg.Breaker.MaxFailures, "TENANTGATE_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "TENANTGATE_BREAKER_TIMEOUT")

	setString(&cfg.Logging.Level, "TENANTGATE_LOG_LEVEL")
	setString(&cfg.Logging.Service, "TENANTGATE_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "TENANTGATE_LOG_ASYNC")

	// OpenTelemetry
	setBool(&cfg.OTel.Enabled, "TENANTGATE_OTEL_ENABLED")
	setString(&cfg.OTel.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setString(&cfg.OTel.ServiceName, "OTEL_SERVICE_NAME")
	setBool(&cfg.OTel.Insecure, "TENANTGATE_OTEL_INSECURE")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	if cfg.Postgres.MaxConns < 1 {
		return errors.New("postgres.max_conns must be >= 1")
	}
	if cfg.Cache.TTL <= 0 {
		return errors.New("cache.ttl must be > 0")
	}
	if cfg.Cache.L1TTL <= 0 || cfg.Cache.L1TTL > cfg.Cache.TTL {
		return errors.New("cache.l1_ttl must be > 0 and <= cache.ttl")
	}
	if cfg.Cache.L1MaxSizeMB < 1 {
		return errors.New("cache.l1_max_size_mb must be >= 1")
	}
	if cfg.NATS.URL != "" && cfg.Cache.L2Bucket == "" {
		return errors.New("cache.l2_bucket is required when nats.url is set")
	}
	if cfg.Resolver.StoreTimeout <= 0 {
		return errors.New("resolver.store_timeout must be > 0")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
