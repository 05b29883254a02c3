package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type BackendMode string

const (
	// BackendModeRemote delegates lookups, validation and orders to the REST backend.
	BackendModeRemote BackendMode = "remote"
	// BackendModeLocal makes this service the authoritative validator over Postgres.
	BackendModeLocal BackendMode = "local"
)

type Configuration struct {
	Server   ServerConfig   `validate:"required"`
	Logging  LoggingConfig  `validate:"required"`
	Backend  BackendConfig  `validate:"required"`
	Postgres PostgresConfig
	Redis    RedisConfig
	Cache    CacheConfig    `validate:"required"`
	Checkout CheckoutConfig `validate:"required"`
}

type ServerConfig struct {
	Address      string        `validate:"required"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type LoggingConfig struct {
	Level string `validate:"required,oneof=debug info warn error"`
}

type BackendConfig struct {
	Mode         BackendMode   `validate:"required,oneof=remote local"`
	BaseURL      string        `mapstructure:"base_url" validate:"required_if=Mode remote,omitempty,url"`
	APIToken     string        `mapstructure:"api_token"`
	Timeout      time.Duration `validate:"required"`
	RetryMax     int           `mapstructure:"retry_max" validate:"min=0"`
	RetryWaitMin time.Duration `mapstructure:"retry_wait_min"`
	RetryWaitMax time.Duration `mapstructure:"retry_wait_max"`
}

type PostgresConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type RedisConfig struct {
	Address   string
	Password  string
	DB        int
	KeyPrefix string `mapstructure:"key_prefix"`
}

type CacheConfig struct {
	AutoApplyTTL    time.Duration `mapstructure:"auto_apply_ttl" validate:"required"`
	LookupTTL       time.Duration `mapstructure:"lookup_ttl" validate:"required"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval" validate:"required"`
}

type CheckoutConfig struct {
	SessionTTL   time.Duration `mapstructure:"session_ttl" validate:"required"`
	AppliedStore string        `mapstructure:"applied_store" validate:"required,oneof=memory redis"`
	AppliedTTL   time.Duration `mapstructure:"applied_ttl" validate:"required"`
}

func NewConfig() (*Configuration, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/pricing-service")

	v.SetEnvPrefix("PRICING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var config Configuration
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// setDefaults registers every key so AutomaticEnv can override it even when
// no config file is present.
func setDefaults(v *viper.Viper) {
	for key, value := range defaults() {
		v.SetDefault(key, value)
	}
}

func defaults() map[string]any {
	return map[string]any{
		"server.address":             ":8080",
		"server.read_timeout":        10 * time.Second,
		"server.write_timeout":       15 * time.Second,
		"server.idle_timeout":        60 * time.Second,
		"logging.level":              "info",
		"backend.mode":               string(BackendModeRemote),
		"backend.base_url":           "http://localhost:8000",
		"backend.api_token":          "",
		"backend.timeout":            10 * time.Second,
		"backend.retry_max":          2,
		"backend.retry_wait_min":     200 * time.Millisecond,
		"backend.retry_wait_max":     2 * time.Second,
		"postgres.host":              "localhost",
		"postgres.port":              5432,
		"postgres.user":              "postgres",
		"postgres.password":          "",
		"postgres.dbname":            "shop",
		"postgres.sslmode":           "disable",
		"postgres.max_open_conns":    20,
		"postgres.max_idle_conns":    10,
		"postgres.conn_max_lifetime": time.Hour,
		"redis.address":              "localhost:6379",
		"redis.password":             "",
		"redis.db":                   0,
		"redis.key_prefix":           "pricing:",
		"cache.auto_apply_ttl":       time.Minute,
		"cache.lookup_ttl":           30 * time.Second,
		"cache.cleanup_interval":     5 * time.Minute,
		"checkout.session_ttl":       2 * time.Hour,
		"checkout.applied_store":     "memory",
		"checkout.applied_ttl":       24 * time.Hour,
	}
}

func (c Configuration) Validate() error {
	validate := validator.New()
	return validate.Struct(c)
}

// GetDefaultConfig returns the defaults without reading files or env.
func GetDefaultConfig() *Configuration {
	v := viper.New()
	setDefaults(v)
	var config Configuration
	_ = v.Unmarshal(&config)
	return &config
}
