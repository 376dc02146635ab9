// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. Upstream marketplace credentials come
// from the environment only (optionally via a .env.local file) and are never
// read from the YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Deployment modes for the product search proxy.
const (
	ModeLive   = "live"
	ModeSample = "sample"
)

// ErrMissingCredentials is returned by Validate when live mode is selected
// but either Coupang key is absent.
var ErrMissingCredentials = errors.New("coupang access key and secret key are required in live mode")

// Config is the top-level application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	RateLimit  RateLimitConfig  `yaml:"rateLimit"`
	CORS       CORSConfig       `yaml:"cors"`
	Coupang    CoupangConfig    `yaml:"coupang"`
	Storefront StorefrontConfig `yaml:"storefront"`
	Postgres   PostgresConfig   `yaml:"postgres"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Redis      RedisConfig      `yaml:"redis"`
	Analytics  AnalyticsConfig  `yaml:"analytics"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"readTimeout" validate:"gt=0"`
	WriteTimeout    time.Duration `yaml:"writeTimeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" validate:"gt=0"`
	// TrustedProxies are CIDRs or IPs whose X-Forwarded-For is believed.
	TrustedProxies []string `yaml:"trustedProxies" validate:"dive,cidr|ip"`
}

// RateLimitConfig bounds how often one client address may call the search
// proxy. Each client gets Requests tokens per Window, refilled continuously.
type RateLimitConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Requests int           `yaml:"requests" validate:"required_if=Enabled true,gte=0"`
	Window   time.Duration `yaml:"window" validate:"required_if=Enabled true,gte=0"`
}

// CORSConfig lists the origins allowed to call the JSON API from a browser.
type CORSConfig struct {
	AllowOrigins []string `yaml:"allowOrigins"`
}

// CoupangConfig controls the product search proxy and its upstream.
// AccessKey and SecretKey are populated from COUPANG_ACCESS_KEY and
// COUPANG_SECRET_KEY.
type CoupangConfig struct {
	Mode      string        `yaml:"mode" validate:"oneof=live sample" ignored:"true"`
	BaseURL   string        `yaml:"baseUrl" validate:"required,url" ignored:"true"`
	Timeout   time.Duration `yaml:"timeout" validate:"gt=0" ignored:"true"`
	AccessKey string        `yaml:"-" envconfig:"ACCESS_KEY"`
	SecretKey string        `yaml:"-" envconfig:"SECRET_KEY"`

	BreakerFailureThreshold int           `yaml:"breakerFailureThreshold" validate:"gte=0" ignored:"true"`
	BreakerResetTimeout     time.Duration `yaml:"breakerResetTimeout" validate:"gte=0" ignored:"true"`
}

// HasCredentials reports whether both keys are present.
func (c CoupangConfig) HasCredentials() bool {
	return c.AccessKey != "" && c.SecretKey != ""
}

// StorefrontConfig holds settings for the server-rendered category pages.
type StorefrontConfig struct {
	// ProxyURL is the base URL the category pages use to reach /api/products.
	// Empty means "this same server".
	ProxyURL string        `yaml:"proxyUrl" validate:"omitempty,url"`
	Timeout  time.Duration `yaml:"timeout" validate:"gt=0"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Enabled       bool        `yaml:"enabled"`
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	SearchEvents string `yaml:"searchEvents"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// AnalyticsConfig controls the analytics service's snapshot cadence.
type AnalyticsConfig struct {
	Port             int           `yaml:"port"`
	SnapshotInterval time.Duration `yaml:"snapshotInterval"`
	BufferSize       int           `yaml:"bufferSize"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json text"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads dotenv files, a YAML config file (if provided) and applies
// environment-variable overrides. It returns a Config populated with defaults
// for any missing values. Load does not validate; call Validate.
func Load(path string) (*Config, error) {
	loadDotEnv(".env.local", ".env")

	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := envconfig.Process("coupang", &cfg.Coupang); err != nil {
		return nil, fmt.Errorf("reading coupang credentials: %w", err)
	}
	return cfg, nil
}

// Validate checks field constraints and the live-mode credential rule.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Coupang.Mode == ModeLive && !c.Coupang.HasCredentials() {
		return ErrMissingCredentials
	}
	return nil
}

// loadDotEnv loads the first files that exist. Variables already present in
// the process environment win.
func loadDotEnv(files ...string) {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		_ = godotenv.Load(f)
	}
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			TrustedProxies:  []string{"127.0.0.0/8", "::1/128"},
		},
		RateLimit: RateLimitConfig{
			Enabled:  true,
			Requests: 60,
			Window:   time.Minute,
		},
		CORS: CORSConfig{
			AllowOrigins: []string{"*"},
		},
		Coupang: CoupangConfig{
			Mode:                    ModeLive,
			BaseURL:                 "https://api-gateway.coupang.com",
			Timeout:                 10 * time.Second,
			BreakerFailureThreshold: 5,
			BreakerResetTimeout:     30 * time.Second,
		},
		Storefront: StorefrontConfig{
			Timeout: 15 * time.Second,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "catshop",
			User:            "catshop",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Enabled:       false,
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "catshop-analytics",
			Topics: KafkaTopics{
				SearchEvents: "product-search-events",
			},
		},
		Redis: RedisConfig{
			Enabled:  false,
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 10 * time.Minute,
		},
		Analytics: AnalyticsConfig{
			Port:             8090,
			SnapshotInterval: time.Minute,
			BufferSize:       10000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads CP_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CP_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("CP_TRUSTED_PROXIES"); v != "" {
		cfg.Server.TrustedProxies = nil
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				cfg.Server.TrustedProxies = append(cfg.Server.TrustedProxies, p)
			}
		}
	}
	if v := os.Getenv("CP_RATE_LIMIT_ENABLED"); v != "" {
		cfg.RateLimit.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("CP_CORS_ALLOW_ORIGINS"); v != "" {
		cfg.CORS.AllowOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("CP_COUPANG_MODE"); v != "" {
		cfg.Coupang.Mode = strings.ToLower(v)
	}
	if v := os.Getenv("CP_COUPANG_BASE_URL"); v != "" {
		cfg.Coupang.BaseURL = v
	}
	if v := os.Getenv("CP_COUPANG_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Coupang.Timeout = d
		}
	}
	if v := os.Getenv("CP_STOREFRONT_PROXY_URL"); v != "" {
		cfg.Storefront.ProxyURL = v
	}
	if v := os.Getenv("CP_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("CP_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("CP_KAFKA_ENABLED"); v != "" {
		cfg.Kafka.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("CP_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("CP_REDIS_ENABLED"); v != "" {
		cfg.Redis.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("CP_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("CP_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("CP_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("CP_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
