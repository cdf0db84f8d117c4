package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the aggregator API server configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Providers  ProvidersConfig  `mapstructure:"providers"`
	Aggregator AggregatorConfig `mapstructure:"aggregator"`
	Health     HealthConfig     `mapstructure:"health"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Webhook    WebhookConfig    `mapstructure:"webhook"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Shutdown   ShutdownConfig   `mapstructure:"shutdown"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig contains database connection settings
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

// RedisConfig contains the shared cache connection settings.
// The result cache (and, optionally, the multi-process rate limit tier)
// live here.
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// ProvidersConfig points at the upstream provider catalog
type ProvidersConfig struct {
	CatalogPath string `mapstructure:"catalog_path"`
}

// AggregatorConfig contains quote fan-out settings
type AggregatorConfig struct {
	ProviderTimeout time.Duration `mapstructure:"provider_timeout"`
	OverallDeadline time.Duration `mapstructure:"overall_deadline"`
	CacheTTL        time.Duration `mapstructure:"cache_ttl"`
}

// HealthConfig contains circuit breaker settings shared by all providers
type HealthConfig struct {
	FailureThreshold int           `mapstructure:"failure_threshold"`
	SuccessThreshold int           `mapstructure:"success_threshold"`
	Cooldown         time.Duration `mapstructure:"cooldown"`
}

// RateLimitConfig contains request admission settings.
// Backend selects the counter store: "memory" (single process) or "redis"
// (shared across processes).
type RateLimitConfig struct {
	Backend          string `mapstructure:"backend"`
	DefaultPerMinute int    `mapstructure:"default_per_minute"`
	DefaultPerHour   int    `mapstructure:"default_per_hour"`
	DefaultPerDay    int    `mapstructure:"default_per_day"`
}

// WebhookConfig contains notification delivery settings
type WebhookConfig struct {
	DeliveryTimeout time.Duration `mapstructure:"delivery_timeout"`
	MaxAttempts     int           `mapstructure:"max_attempts"`
	BackoffBase     time.Duration `mapstructure:"backoff_base"`
	BackoffFactor   int           `mapstructure:"backoff_factor"`
	Workers         int           `mapstructure:"workers"`
	SweepInterval   time.Duration `mapstructure:"sweep_interval"`
}

// AuthConfig contains authentication settings. MonitorSecret signs the
// bearer tokens used by the status monitor to call the advance endpoint.
type AuthConfig struct {
	APIKeyHeader  string `mapstructure:"api_key_header"`
	MonitorSecret string `mapstructure:"monitor_secret"`
	MonitorIssuer string `mapstructure:"monitor_issuer"`
}

// MonitoringConfig contains monitoring and metrics settings
type MonitoringConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	MetricsPort int  `mapstructure:"metrics_port"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// ShutdownConfig contains graceful shutdown settings
type ShutdownConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "60s")
	viper.SetDefault("server.shutdown_timeout", "30s")

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.database", "nexbridge")

	// Redis defaults
	viper.SetDefault("redis.enabled", true)
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.db", 0)

	// Provider catalog defaults
	viper.SetDefault("providers.catalog_path", "providers.yaml")

	// Aggregator defaults
	viper.SetDefault("aggregator.provider_timeout", "3s")
	viper.SetDefault("aggregator.overall_deadline", "5s")
	viper.SetDefault("aggregator.cache_ttl", "30s")

	// Circuit breaker defaults
	viper.SetDefault("health.failure_threshold", 3)
	viper.SetDefault("health.success_threshold", 2)
	viper.SetDefault("health.cooldown", "30s")

	// Rate limit defaults
	viper.SetDefault("rate_limit.backend", "memory")
	viper.SetDefault("rate_limit.default_per_minute", 60)
	viper.SetDefault("rate_limit.default_per_hour", 1000)
	viper.SetDefault("rate_limit.default_per_day", 10000)

	// Webhook defaults
	viper.SetDefault("webhook.delivery_timeout", "5s")
	viper.SetDefault("webhook.max_attempts", 5)
	viper.SetDefault("webhook.backoff_base", "5s")
	viper.SetDefault("webhook.backoff_factor", 5)
	viper.SetDefault("webhook.workers", 4)
	viper.SetDefault("webhook.sweep_interval", "1m")

	// Auth defaults
	viper.SetDefault("auth.api_key_header", "X-API-Key")
	viper.SetDefault("auth.monitor_issuer", "nexbridge-monitor")

	// Monitoring defaults
	viper.SetDefault("monitoring.enabled", true)
	viper.SetDefault("monitoring.metrics_port", 9090)

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output_path", "stdout")

	// Shutdown defaults
	viper.SetDefault("shutdown.timeout", "30s")
}

func validate(config *Config) error {
	if config.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if config.Providers.CatalogPath == "" {
		return fmt.Errorf("providers.catalog_path is required")
	}
	if config.Aggregator.ProviderTimeout <= 0 {
		return fmt.Errorf("aggregator.provider_timeout must be positive")
	}
	if config.Aggregator.OverallDeadline < config.Aggregator.ProviderTimeout {
		return fmt.Errorf("aggregator.overall_deadline must not be shorter than provider_timeout")
	}
	if config.RateLimit.Backend == "redis" && !config.Redis.Enabled {
		return fmt.Errorf("rate_limit.backend=redis requires redis.enabled")
	}
	if config.Auth.MonitorSecret == "" {
		return fmt.Errorf("auth.monitor_secret is required")
	}
	return nil
}

// GetConnectionString returns a PostgreSQL connection string
func (c *DatabaseConfig) GetConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
