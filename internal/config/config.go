// Package config loads and validates application configuration from YAML
// files and environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root application configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Catalog       CatalogConfig       `yaml:"catalog"`
	Cache         CacheConfig         `yaml:"cache"`
	Idempotency   IdempotencyConfig   `yaml:"idempotency"`
	Explorer      ExplorerConfig      `yaml:"explorer"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig describes HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	HandlerTimeout  time.Duration `yaml:"handler_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	CORS            CORSConfig    `yaml:"cors"`
}

// CORSConfig describes Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
	MaxAge         int      `yaml:"max_age"`
}

// CatalogConfig describes the upstream exoplanet catalogue API.
//
// AdminKeyEnv names the environment variable holding the admin API key. An
// empty resolved key means the admin listing is disabled; whether that is a
// misconfiguration or intentional is deliberately not distinguished.
type CatalogConfig struct {
	BaseURL        string               `yaml:"base_url"`
	Timeout        time.Duration        `yaml:"timeout"`
	AdminKeyEnv    string               `yaml:"admin_key_env"`
	Retry          RetryConfig          `yaml:"retry"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// AdminKey resolves the admin API key from the configured environment
// variable. It returns "" when unset.
func (c CatalogConfig) AdminKey() string {
	if c.AdminKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.AdminKeyEnv)
}

// RetryConfig describes retry settings for upstream calls.
type RetryConfig struct {
	MaxAttempts       int           `yaml:"max_attempts"`
	BackoffInitial    time.Duration `yaml:"backoff_initial"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
	BackoffMax        time.Duration `yaml:"backoff_max"`
	IdempotentOnly    bool          `yaml:"idempotent_only"`
}

// CircuitBreakerConfig describes circuit breaker settings for upstream calls.
type CircuitBreakerConfig struct {
	FailureThreshold int           `yaml:"failure_threshold"`
	SuccessThreshold int           `yaml:"success_threshold"`
	Timeout          time.Duration `yaml:"timeout"`
}

// CacheConfig describes the data-access cache windows.
//
// Staleness is how long a fetched value is served without any refresh.
// Retention is how long a stale value may still be served while a background
// refresh runs; entries unobserved past it are evicted.
type CacheConfig struct {
	Staleness  time.Duration `yaml:"staleness"`
	Retention  time.Duration `yaml:"retention"`
	MaxEntries int           `yaml:"max_entries"`
}

// IdempotencyConfig describes create-mutation idempotency settings.
type IdempotencyConfig struct {
	Enabled bool                   `yaml:"enabled"`
	Store   IdempotencyStoreConfig `yaml:"store"`
}

// IdempotencyStoreConfig describes idempotency persistence settings.
type IdempotencyStoreConfig struct {
	Driver     string        `yaml:"driver"`
	AddrEnv    string        `yaml:"addr_env"`
	DB         int           `yaml:"db"`
	DefaultTTL time.Duration `yaml:"default_ttl"`
}

// ExplorerConfig describes where the endpoint explorer finds the catalogue's
// OpenAPI document. SpecFile takes precedence when both are set; with neither,
// the document is fetched from the catalogue's /openapi.json at startup.
type ExplorerConfig struct {
	SpecFile string `yaml:"spec_file"`
	SpecURL  string `yaml:"spec_url"`
}

// ObservabilityConfig describes logging, tracing, and metrics settings.
type ObservabilityConfig struct {
	LogLevel string        `yaml:"log_level"`
	Tracing  TracingConfig `yaml:"tracing"`
	Metrics  MetricsConfig `yaml:"metrics"`
}

// TracingConfig describes distributed tracing settings.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"sampling_rate"`
}

// MetricsConfig describes Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// DefaultCatalogURL is the production catalogue endpoint used when no
// base URL is configured.
const DefaultCatalogURL = "https://exoplanets-api.fly.dev"

// Defaults returns a Config with sensible default values.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			HandlerTimeout:  25 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			CORS: CORSConfig{
				AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
				AllowedHeaders: []string{"Content-Type", "X-Correlation-Id", "X-Idempotency-Key"},
				MaxAge:         86400,
			},
		},
		Catalog: CatalogConfig{
			BaseURL:     DefaultCatalogURL,
			Timeout:     10 * time.Second,
			AdminKeyEnv: "EXOVIEW_ADMIN_KEY",
			Retry: RetryConfig{
				MaxAttempts:       3,
				BackoffInitial:    100 * time.Millisecond,
				BackoffMultiplier: 2,
				BackoffMax:        2 * time.Second,
				IdempotentOnly:    true,
			},
			CircuitBreaker: CircuitBreakerConfig{
				FailureThreshold: 5,
				SuccessThreshold: 2,
				Timeout:          30 * time.Second,
			},
		},
		Cache: CacheConfig{
			Staleness:  30 * time.Second,
			Retention:  5 * time.Minute,
			MaxEntries: 1000,
		},
		Idempotency: IdempotencyConfig{
			Store: IdempotencyStoreConfig{
				Driver:     "memory",
				AddrEnv:    "EXOVIEW_REDIS_ADDR",
				DefaultTTL: 24 * time.Hour,
			},
		},
		Observability: ObservabilityConfig{
			LogLevel: "info",
			Tracing: TracingConfig{
				Exporter:     "otlp",
				SamplingRate: 0.1,
			},
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
	}
}

// Load reads a YAML config file, applies environment variable overrides,
// and validates required fields.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required fields are present and valid.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}
	if c.Catalog.BaseURL == "" {
		errs = append(errs, "catalog.base_url is required")
	}
	if !strings.HasPrefix(c.Catalog.BaseURL, "http://") && !strings.HasPrefix(c.Catalog.BaseURL, "https://") {
		errs = append(errs, "catalog.base_url must be an http(s) URL")
	}
	if c.Cache.Staleness <= 0 {
		errs = append(errs, "cache.staleness must be positive")
	}
	if c.Cache.Retention < c.Cache.Staleness {
		errs = append(errs, "cache.retention must be at least cache.staleness")
	}
	switch c.Idempotency.Store.Driver {
	case "", "memory", "redis":
	default:
		errs = append(errs, fmt.Sprintf("idempotency.store.driver %q is not supported", c.Idempotency.Store.Driver))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// applyEnvOverrides reads EXOVIEW_* environment variables and overrides
// config values. Only the most commonly overridden fields are supported.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("EXOVIEW_SERVER_PORT"); v != "" {
		var port int
		if _, err := fmt.Sscanf(v, "%d", &port); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("EXOVIEW_CATALOG_BASE_URL"); v != "" {
		cfg.Catalog.BaseURL = v
	}
	if v := os.Getenv("EXOVIEW_OBSERVABILITY_LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}
	if v := os.Getenv("EXOVIEW_CACHE_STALENESS"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.Staleness = d
		}
	}
	if v := os.Getenv("EXOVIEW_CACHE_RETENTION"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.Retention = d
		}
	}
}
