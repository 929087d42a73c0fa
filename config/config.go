// Package config loads the versioned application configuration once at startup.
// Components receive the parts they need through their constructors.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Version   string          `mapstructure:"version"`
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"db"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Platform  PlatformConfig  `mapstructure:"platform"`
	Features  FeatureConfig   `mapstructure:"feature"`
	Booking   BookingConfig   `mapstructure:"booking"`
	Webhook   WebhookConfig   `mapstructure:"webhook"`
	Tracking  TrackingConfig  `mapstructure:"tracking"`
	AIS       AISConfig       `mapstructure:"ais"`
	Documents DocumentsConfig `mapstructure:"documents"`
	SSO       SSOConfig       `mapstructure:"sso"`
	Broker    BrokerConfig    `mapstructure:"broker"`
	Telemetry TelemetryConfig `mapstructure:"otel"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         string        `mapstructure:"port"`
	FrontendURL  string        `mapstructure:"frontend_url"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	BodyLimit    int           `mapstructure:"body_limit"`
}

type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"` // postgres or memory
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Name     string `mapstructure:"database"`
	User     string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`
	Seed     bool   `mapstructure:"seed"`
}

type AuthConfig struct {
	JWTSecret       string `mapstructure:"jwt_secret"`
	PublicKeyURL    string `mapstructure:"public_key_url"`
	SchedulerSecret string `mapstructure:"scheduler_secret"`
}

type PlatformConfig struct {
	FeeBasisPoints  int64  `mapstructure:"fee_basis_points"`
	DefaultCurrency string `mapstructure:"default_currency"`
}

type FeatureConfig struct {
	EnforceOverlapCheck bool `mapstructure:"enforce_overlap_check"`
}

type BookingConfig struct {
	MinPurposeLength int `mapstructure:"min_purpose_length"`
}

type WebhookConfig struct {
	PaystackSecret        string `mapstructure:"paystack_secret"`
	FlutterwaveSecretHash string `mapstructure:"flutterwave_secret_hash"`
	MaxBodyBytes          int    `mapstructure:"max_body_bytes"`
}

type TrackingConfig struct {
	Workers      int           `mapstructure:"workers"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
	TickDeadline time.Duration `mapstructure:"tick_deadline"`
	Source       string        `mapstructure:"source"`
}

type AISConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type DocumentsConfig struct {
	BaseURL  string        `mapstructure:"base_url"`
	Token    string        `mapstructure:"token"`
	LocalDir string        `mapstructure:"local_dir"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type SSOConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

type BrokerConfig struct {
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
}

type TelemetryConfig struct {
	Endpoint    string `mapstructure:"endpoint"`
	ServiceName string `mapstructure:"service_name"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("version", "2026-10-01")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.frontend_url", "*")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.body_limit", 10*1024*1024)

	v.SetDefault("db.driver", "postgres")
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", "5432")
	v.SetDefault("db.database", "bluefleet")
	v.SetDefault("db.username", "bluefleet")
	v.SetDefault("db.password", "")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.seed", false)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.public_key_url", "")
	v.SetDefault("auth.scheduler_secret", "")

	v.SetDefault("platform.fee_basis_points", 250)
	v.SetDefault("platform.default_currency", "USD")

	v.SetDefault("feature.enforce_overlap_check", true)

	v.SetDefault("booking.min_purpose_length", 10)

	v.SetDefault("webhook.paystack_secret", "")
	v.SetDefault("webhook.flutterwave_secret_hash", "")
	v.SetDefault("webhook.max_body_bytes", 1<<20)

	v.SetDefault("tracking.workers", 4)
	v.SetDefault("tracking.fetch_timeout", 10*time.Second)
	v.SetDefault("tracking.tick_deadline", 2*time.Minute)
	v.SetDefault("tracking.source", "ais")

	v.SetDefault("ais.base_url", "")
	v.SetDefault("ais.api_key", "")
	v.SetDefault("ais.timeout", 15*time.Second)

	v.SetDefault("documents.base_url", "")
	v.SetDefault("documents.token", "")
	v.SetDefault("documents.local_dir", "signed_documents")
	v.SetDefault("documents.timeout", 30*time.Second)

	v.SetDefault("sso.base_url", "")

	v.SetDefault("broker.url", "")
	v.SetDefault("broker.exchange", "bluefleet.lifecycle")

	v.SetDefault("otel.endpoint", "")
	v.SetDefault("otel.service_name", "bluefleet")
}

// Load reads .env (when present) and the process environment. Keys map to
// environment variables by upper-casing and replacing dots, e.g. tracking.workers
// is TRACKING_WORKERS.
func Load(envFiles ...string) (*Config, error) {
	// a missing .env is normal outside local development
	_ = godotenv.Load(envFiles...)

	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Defaults returns the configuration with every default applied and no
// environment lookups
func Defaults() *Config {
	v := viper.New()
	setDefaults(v)
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		panic(fmt.Sprintf("decode default config: %v", err))
	}
	return &c
}

// Validate rejects combinations the service cannot start with
func (c *Config) Validate() error {
	if c.Version == "" {
		return fmt.Errorf("config version is required")
	}
	if c.Database.Driver != "postgres" && c.Database.Driver != "memory" {
		return fmt.Errorf("DB_DRIVER must be postgres or memory, got %q", c.Database.Driver)
	}
	if c.Platform.FeeBasisPoints < 0 || c.Platform.FeeBasisPoints > 10000 {
		return fmt.Errorf("PLATFORM_FEE_BASIS_POINTS must be within [0, 10000]")
	}
	if c.Booking.MinPurposeLength < 1 {
		return fmt.Errorf("BOOKING_MIN_PURPOSE_LENGTH must be positive")
	}
	if c.Tracking.Workers < 1 {
		return fmt.Errorf("TRACKING_WORKERS must be positive")
	}
	if c.Tracking.FetchTimeout <= 0 || c.Tracking.TickDeadline <= 0 {
		return fmt.Errorf("tracking timeouts must be positive")
	}
	return nil
}

// DSN builds the Postgres connection string
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// Address returns host:port for the HTTP listener
func (c ServerConfig) Address() string {
	return c.Host + ":" + c.Port
}
