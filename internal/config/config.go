// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Session store backends selectable via SESSION_STORE.
const (
	StorePostgres = "postgres"
	StoreRedis    = "redis"
	StoreMemory   = "memory"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN. Required for the postgres store, migrations and seeding.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// SessionStore selects the session backend: postgres, redis or memory.
	SessionStore string `mapstructure:"SESSION_STORE"`
	// RedisURL is the redis:// URL used when SessionStore is redis.
	RedisURL string `mapstructure:"REDIS_URL"`

	// SessionTTL is the sliding session lifetime (e.g. "10m").
	SessionTTL time.Duration `mapstructure:"SESSION_TTL"`
	// SessionInactivityWindow is how long a session may go without an activity signal.
	SessionInactivityWindow time.Duration `mapstructure:"SESSION_INACTIVITY_WINDOW"`
	// SessionRefreshWindow: authenticated requests extend the session when it expires within this window.
	SessionRefreshWindow time.Duration `mapstructure:"SESSION_REFRESH_WINDOW"`
	// SessionRetryMax is the number of retries for a failed validation lookup.
	SessionRetryMax int `mapstructure:"SESSION_RETRY_MAX"`
	// SessionRetryBaseDelay is multiplied by the attempt number between retries.
	SessionRetryBaseDelay time.Duration `mapstructure:"SESSION_RETRY_BASE_DELAY"`
	// SessionCleanupInterval is the janitor period; 0 disables the janitor.
	SessionCleanupInterval time.Duration `mapstructure:"SESSION_CLEANUP_INTERVAL"`

	// CookieSecure marks session cookies Secure.
	CookieSecure bool `mapstructure:"COOKIE_SECURE"`
	// CookieDomain is the Domain attribute for session cookies; empty means host-only.
	CookieDomain string `mapstructure:"COOKIE_DOMAIN"`

	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `mapstructure:"LOG_LEVEL"`
	// LogFormat is json or text.
	LogFormat string `mapstructure:"LOG_FORMAT"`

	// OTLPEndpoint is the OTLP gRPC collector endpoint; empty disables export.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTLPInsecure forces a plaintext connection to the collector.
	OTLPInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	// ServiceName is reported as the OTel service.name resource attribute.
	ServiceName string `mapstructure:"OTEL_SERVICE_NAME"`

	// Telemetry (optional). When Kafka brokers are set, session lifecycle events are emitted to Kafka.
	// TelemetryKafkaBrokers is a comma-separated list of Kafka broker addresses (e.g. "localhost:9092").
	TelemetryKafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// TelemetryKafkaTopic is the Kafka topic for session events.
	TelemetryKafkaTopic string `mapstructure:"TELEMETRY_KAFKA_TOPIC"`

	// Worker-only: Loki URL for the telemetry worker to push logs (e.g. http://localhost:3100).
	LokiURL string `mapstructure:"LOKI_URL"`
	// KafkaGroupID is the consumer group ID for the telemetry worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`

	// SeedAdminPassword and SeedGuestPassword are the passwords cmd/seed sets for the
	// admin and guest accounts. The server also uses them to populate the in-memory
	// user store when DATABASE_URL is empty. Empty skips the account.
	SeedAdminPassword string `mapstructure:"SEED_ADMIN_PASSWORD"`
	SeedGuestPassword string `mapstructure:"SEED_GUEST_PASSWORD"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("SESSION_STORE", StorePostgres)
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("SESSION_TTL", "10m")
	v.SetDefault("SESSION_INACTIVITY_WINDOW", "10m")
	v.SetDefault("SESSION_REFRESH_WINDOW", "5m")
	v.SetDefault("SESSION_RETRY_MAX", 2)
	v.SetDefault("SESSION_RETRY_BASE_DELAY", "500ms")
	v.SetDefault("SESSION_CLEANUP_INTERVAL", "5m")
	v.SetDefault("COOKIE_SECURE", false)
	v.SetDefault("COOKIE_DOMAIN", "")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("APP_ENV", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("OTEL_SERVICE_NAME", "portal-session")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("TELEMETRY_KAFKA_TOPIC", "portal-session-events")
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("KAFKA_GROUP_ID", "portal-session-worker")
	v.SetDefault("SEED_ADMIN_PASSWORD", "")
	v.SetDefault("SEED_GUEST_PASSWORD", "")
}

func (c *Config) validate() error {
	if c.HTTPAddr == "" {
		return errors.New("config: HTTP_ADDR must be set")
	}

	c.SessionStore = strings.ToLower(strings.TrimSpace(c.SessionStore))
	switch c.SessionStore {
	case StorePostgres, StoreMemory:
	case StoreRedis:
		if c.RedisURL == "" {
			return errors.New("config: REDIS_URL must be set when SESSION_STORE=redis")
		}
	default:
		return errors.New("config: SESSION_STORE must be postgres, redis or memory")
	}
	if c.SessionStore == StoreMemory && c.Env == "production" {
		return errors.New("config: SESSION_STORE=memory must not be used when APP_ENV=production")
	}

	if c.SessionTTL <= 0 || c.SessionInactivityWindow <= 0 || c.SessionRefreshWindow <= 0 {
		return errors.New("config: SESSION_TTL, SESSION_INACTIVITY_WINDOW and SESSION_REFRESH_WINDOW must be positive")
	}
	if c.SessionRefreshWindow >= c.SessionTTL {
		return errors.New("config: SESSION_REFRESH_WINDOW must be shorter than SESSION_TTL")
	}
	if c.SessionRefreshWindow > c.SessionInactivityWindow {
		return errors.New("config: SESSION_REFRESH_WINDOW must not exceed SESSION_INACTIVITY_WINDOW")
	}
	if c.SessionRetryMax < 0 {
		return errors.New("config: SESSION_RETRY_MAX must not be negative")
	}
	if c.SessionRetryBaseDelay < 0 || c.SessionCleanupInterval < 0 {
		return errors.New("config: SESSION_RETRY_BASE_DELAY and SESSION_CLEANUP_INTERVAL must not be negative")
	}

	if c.BcryptCost == 0 {
		c.BcryptCost = 12
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	return nil
}

// TelemetryKafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if event streaming is enabled (non-empty list) and to create the producer.
func (c *Config) TelemetryKafkaBrokersList() []string {
	if c == nil || c.TelemetryKafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.TelemetryKafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
