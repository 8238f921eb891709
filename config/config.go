package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Webhook  WebhookConfig  `mapstructure:"webhook"`
	Ingest   IngestConfig   `mapstructure:"ingest"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

// WebhookConfig controls delivery, retry, and circuit-breaker behavior.
type WebhookConfig struct {
	FailureThreshold    int           `mapstructure:"failure_threshold"`     // failures before circuit opens
	CircuitResetMinutes int           `mapstructure:"circuit_reset_minutes"` // cooldown before auto re-enable
	DeliveryTimeout     time.Duration `mapstructure:"delivery_timeout"`      // per-request HTTP timeout
	Workers             int           `mapstructure:"workers"`
	RetryAttempts       int           `mapstructure:"retry_attempts"`
	RetryBaseDelay      time.Duration `mapstructure:"retry_base_delay"`
}

// Cooldown returns the circuit reset window as a duration.
func (w WebhookConfig) Cooldown() time.Duration {
	return time.Duration(w.CircuitResetMinutes) * time.Minute
}

// IngestConfig guards the internal event-ingest endpoint.
type IngestConfig struct {
	TokenHash string `mapstructure:"token_hash"` // Argon2id hash of the service token
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: WGW_ (Webhook Gateway).
// Nested keys use underscore: WGW_DATABASE_HOST, WGW_JWT_SECRET, etc.
// The bare names WEBHOOK_FAILURE_THRESHOLD and WEBHOOK_CIRCUIT_RESET_MINUTES
// are also recognized for compatibility with existing deployments.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "webhook_gateway")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "24h")
	v.SetDefault("jwt.issuer", "webhook-gateway")
	v.SetDefault("webhook.failure_threshold", 10)
	v.SetDefault("webhook.circuit_reset_minutes", 30)
	v.SetDefault("webhook.delivery_timeout", "10s")
	v.SetDefault("webhook.workers", 4)
	v.SetDefault("webhook.retry_attempts", 5)
	v.SetDefault("webhook.retry_base_delay", "2s")
	v.SetDefault("ingest.token_hash", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: WGW_DATABASE_HOST -> database.host
	v.SetEnvPrefix("WGW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Bare circuit-breaker env names take their documented form.
	_ = v.BindEnv("webhook.failure_threshold", "WGW_WEBHOOK_FAILURE_THRESHOLD", "WEBHOOK_FAILURE_THRESHOLD")
	_ = v.BindEnv("webhook.circuit_reset_minutes", "WGW_WEBHOOK_CIRCUIT_RESET_MINUTES", "WEBHOOK_CIRCUIT_RESET_MINUTES")

	// Read config file (not required, env vars can suffice)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}
