package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DriverMemory   = "memory"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

// Config holds application configuration.
type Config struct {
	HTTP    HTTPConfig    `mapstructure:"http"`
	API     APIConfig     `mapstructure:"api"`
	Breaker BreakerConfig `mapstructure:"breaker"`
	Session SessionConfig `mapstructure:"session"`
	Storage StorageConfig `mapstructure:"storage"`
	Payment PaymentConfig `mapstructure:"payment"`
	Kafka   KafkaConfig   `mapstructure:"kafka"`
	Logging LoggingConfig `mapstructure:"logging"`
}

type HTTPConfig struct {
	Port               string        `mapstructure:"port"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout    time.Duration `mapstructure:"shutdown_timeout"`
	MaxRequestBodySize int64         `mapstructure:"max_request_body_size"`
}

// APIConfig points at the storefront backend (auth, cart, orders).
type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type BreakerConfig struct {
	MaxFailures      uint32        `mapstructure:"max_failures"`
	OpenTimeout      time.Duration `mapstructure:"open_timeout"`
	HalfOpenRequests uint32        `mapstructure:"half_open_requests"`
}

type SessionConfig struct {
	RetainOnNetworkError bool `mapstructure:"retain_on_network_error"`
}

// StorageConfig selects where the token and shipping draft are persisted.
type StorageConfig struct {
	Driver    string         `mapstructure:"driver"`
	Namespace string         `mapstructure:"namespace"`
	Redis     RedisConfig    `mapstructure:"redis"`
	Postgres  PostgresConfig `mapstructure:"postgres"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type PostgresConfig struct {
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	User          string `mapstructure:"user"`
	Password      string `mapstructure:"password"`
	DBName        string `mapstructure:"dbname"`
	MigrationsDir string `mapstructure:"migrations_dir"`
}

// PaymentConfig configures the card processor. Card payments are disabled when
// either value is empty.
type PaymentConfig struct {
	ProcessorURL   string        `mapstructure:"processor_url"`
	PublishableKey string        `mapstructure:"publishable_key"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type LoggingConfig struct {
	Level     string `mapstructure:"level"`
	Format    string `mapstructure:"format"`
	AddSource bool   `mapstructure:"add_source"`
}

// Load reads configuration from file and env. Env var overrides use prefix
// STOREFRONT_, e.g. STOREFRONT_STORAGE_REDIS_ADDR.
func Load() (Config, error) {
	v := viper.New()

	v.SetDefault("http.port", "8080")
	v.SetDefault("http.request_timeout", 30*time.Second)
	v.SetDefault("http.shutdown_timeout", 10*time.Second)
	v.SetDefault("http.max_request_body_size", 1<<20)
	v.SetDefault("api.base_url", "http://localhost:5000")
	v.SetDefault("api.timeout", 15*time.Second)
	v.SetDefault("breaker.max_failures", 5)
	v.SetDefault("breaker.open_timeout", 30*time.Second)
	v.SetDefault("breaker.half_open_requests", 1)
	v.SetDefault("session.retain_on_network_error", true)
	v.SetDefault("storage.driver", DriverMemory)
	v.SetDefault("storage.namespace", "storefront")
	v.SetDefault("storage.redis.addr", "localhost:6379")
	v.SetDefault("storage.redis.password", "")
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.postgres.host", "localhost")
	v.SetDefault("storage.postgres.port", 5432)
	v.SetDefault("storage.postgres.user", "storefront")
	v.SetDefault("storage.postgres.password", "")
	v.SetDefault("storage.postgres.dbname", "storefront")
	v.SetDefault("storage.postgres.migrations_dir", "internal/storage/migrations")
	v.SetDefault("payment.processor_url", "")
	v.SetDefault("payment.publishable_key", "")
	v.SetDefault("payment.timeout", 20*time.Second)
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "storefront-checkout")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.add_source", false)

	v.SetConfigType("toml")

	cfgPath := os.Getenv("STOREFRONT_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("storefront")
	}

	v.SetEnvPrefix("STOREFRONT")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// an explicitly named file must exist
		if cfgPath != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, nil
}

// Validate rejects combinations the application cannot start with.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.API.BaseURL) == "" {
		errs = append(errs, errors.New("api.base_url is required"))
	}
	if c.HTTP.Port == "" {
		errs = append(errs, errors.New("http.port is required"))
	}
	switch c.Storage.Driver {
	case DriverMemory:
	case DriverRedis:
		if c.Storage.Redis.Addr == "" {
			errs = append(errs, errors.New("storage.redis.addr is required for the redis driver"))
		}
	case DriverPostgres:
		if c.Storage.Postgres.Host == "" || c.Storage.Postgres.DBName == "" {
			errs = append(errs, errors.New("storage.postgres.host and dbname are required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage.driver %q", c.Storage.Driver))
	}
	return errors.Join(errs...)
}

// CardPaymentsEnabled reports whether a card processor is configured.
func (c PaymentConfig) CardPaymentsEnabled() bool {
	return strings.TrimSpace(c.ProcessorURL) != "" && strings.TrimSpace(c.PublishableKey) != ""
}
