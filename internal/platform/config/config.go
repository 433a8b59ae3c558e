// Package config loads service configuration from an optional YAML file and
// PURCHASEGATE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MetricsPath     string        `mapstructure:"metrics_path"`
}

// Auth holds signing material for parent session tokens and approval links.
type Auth struct {
	JWTSigningKey string        `mapstructure:"jwt_signing_key"`
	Issuer        string        `mapstructure:"issuer"`
	Audience      string        `mapstructure:"audience"`
	LinkBaseURL   string        `mapstructure:"link_base_url"`
	SessionTTL    time.Duration `mapstructure:"session_ttl"`
}

// Purchase holds the business policy knobs of the purchase flow.
type Purchase struct {
	ApprovalTTL     time.Duration `mapstructure:"approval_ttl"`
	RedeemWindow    time.Duration `mapstructure:"redeem_window"`
	RefundWindow    time.Duration `mapstructure:"refund_window"`
	SettleTimeout   time.Duration `mapstructure:"settle_timeout"`
	LedgerTimezone  string        `mapstructure:"ledger_timezone"`
	CreatorShare    string        `mapstructure:"creator_share"`
	DefaultCurrency string        `mapstructure:"default_currency"`
}

// Sweep configures the approval expiry worker.
type Sweep struct {
	Enabled   bool          `mapstructure:"enabled"`
	Interval  time.Duration `mapstructure:"interval"`
	Retention time.Duration `mapstructure:"retention"`
}

// Catalog locates the content pack catalog file.
type Catalog struct {
	Path     string        `mapstructure:"path"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// Payment configures the payment platform adapter and its breaker.
type Payment struct {
	Provider         string        `mapstructure:"provider"`
	Timeout          time.Duration `mapstructure:"timeout"`
	BreakerThreshold int           `mapstructure:"breaker_threshold"`
	BreakerCooldown  time.Duration `mapstructure:"breaker_cooldown"`
}

// Database configures the PostgreSQL pool. An empty URL selects in-memory stores.
type Database struct {
	URL             string        `mapstructure:"url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// RedisConfig configures the Redis client. An empty URL disables Redis.
type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Kafka configures the notification producer. Empty brokers disable Kafka.
type Kafka struct {
	Brokers         string        `mapstructure:"brokers"`
	Topic           string        `mapstructure:"topic"`
	Acks            string        `mapstructure:"acks"`
	Retries         int           `mapstructure:"retries"`
	DeliveryTimeout time.Duration `mapstructure:"delivery_timeout"`
}

// Email configures the SES parent email notifier. Empty sender disables it.
type Email struct {
	Sender string `mapstructure:"sender"`
	Region string `mapstructure:"region"`
}

// Notify configures the async notification dispatcher.
type Notify struct {
	Buffer  int           `mapstructure:"buffer"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Config is the root configuration object.
type Config struct {
	ServiceName string `mapstructure:"service_name"`
	Env         string `mapstructure:"env"`
	LogLevel    string `mapstructure:"log_level"`
	// ApprovalStore selects the approval token backend: memory, postgres or redis.
	ApprovalStore string `mapstructure:"approval_store"`

	Server   Server      `mapstructure:"server"`
	Auth     Auth        `mapstructure:"auth"`
	Purchase Purchase    `mapstructure:"purchase"`
	Sweep    Sweep       `mapstructure:"sweep"`
	Catalog  Catalog     `mapstructure:"catalog"`
	Payment  Payment     `mapstructure:"payment"`
	Database Database    `mapstructure:"database"`
	Redis    RedisConfig `mapstructure:"redis"`
	Kafka    Kafka       `mapstructure:"kafka"`
	Email    Email       `mapstructure:"email"`
	Notify   Notify      `mapstructure:"notify"`
}

const devSigningKey = "dev-secret-key-change-in-production"

// Load reads configuration from path (optional) and the environment.
// Env keys use the PURCHASEGATE prefix with dots replaced by underscores,
// e.g. PURCHASEGATE_PURCHASE_APPROVAL_TTL=10m.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PURCHASEGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service_name", "purchasegate")
	v.SetDefault("env", "dev")
	v.SetDefault("log_level", "info")
	v.SetDefault("approval_store", "memory")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", "5s")
	v.SetDefault("server.write_timeout", "10s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("server.metrics_path", "/metrics")

	v.SetDefault("auth.jwt_signing_key", devSigningKey)
	v.SetDefault("auth.issuer", "purchasegate")
	v.SetDefault("auth.audience", "purchasegate-parents")
	v.SetDefault("auth.link_base_url", "http://localhost:8080/v1/approvals/link")
	v.SetDefault("auth.session_ttl", "12h")

	v.SetDefault("purchase.approval_ttl", "15m")
	v.SetDefault("purchase.redeem_window", "15m")
	v.SetDefault("purchase.refund_window", "24h")
	v.SetDefault("purchase.settle_timeout", "30s")
	v.SetDefault("purchase.ledger_timezone", "UTC")
	v.SetDefault("purchase.creator_share", "0.75")
	v.SetDefault("purchase.default_currency", "USD")

	v.SetDefault("sweep.enabled", true)
	v.SetDefault("sweep.interval", "1m")
	v.SetDefault("sweep.retention", "720h")

	v.SetDefault("catalog.path", "configs/catalog.yaml")
	v.SetDefault("catalog.cache_ttl", "5m")

	v.SetDefault("payment.provider", "sandbox")
	v.SetDefault("payment.timeout", "10s")
	v.SetDefault("payment.breaker_threshold", 5)
	v.SetDefault("payment.breaker_cooldown", "30s")

	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "5m")

	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.read_timeout", "3s")
	v.SetDefault("redis.write_timeout", "3s")

	v.SetDefault("kafka.topic", "purchasegate.parent-notifications")
	v.SetDefault("kafka.acks", "all")
	v.SetDefault("kafka.retries", 3)
	v.SetDefault("kafka.delivery_timeout", "30s")

	v.SetDefault("email.region", "us-east-1")

	v.SetDefault("notify.buffer", 256)
	v.SetDefault("notify.timeout", "5s")
}

func (c *Config) validate() error {
	if c.Purchase.ApprovalTTL <= 0 {
		return fmt.Errorf("purchase.approval_ttl must be positive")
	}
	if c.Purchase.RedeemWindow <= 0 {
		return fmt.Errorf("purchase.redeem_window must be positive")
	}
	if c.Purchase.RefundWindow <= 0 {
		return fmt.Errorf("purchase.refund_window must be positive")
	}
	if _, err := c.LedgerLocation(); err != nil {
		return err
	}
	switch c.ApprovalStore {
	case "memory":
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("approval_store=postgres requires database.url")
		}
	case "redis":
		if c.Redis.URL == "" {
			return fmt.Errorf("approval_store=redis requires redis.url")
		}
	default:
		return fmt.Errorf("unknown approval_store %q", c.ApprovalStore)
	}
	if c.Env == "prod" && c.Auth.JWTSigningKey == devSigningKey {
		return fmt.Errorf("auth.jwt_signing_key must be set in prod")
	}
	return nil
}

// LedgerLocation resolves the time zone used for calendar-month spend windows.
func (c *Config) LedgerLocation() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Purchase.LedgerTimezone)
	if err != nil {
		return nil, fmt.Errorf("purchase.ledger_timezone: %w", err)
	}
	return loc, nil
}
