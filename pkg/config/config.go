package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	AppEnv         string `envconfig:"APP_ENV" default:"dev"`
	HTTPAddr       string `envconfig:"HTTP_ADDR"`
	MigrationsPath string `envconfig:"MIGRATIONS_PATH"`

	// Hosted Postgres convenience:
	// - DATABASE_URL: runtime connection (often PgBouncer/pooler)
	// - DIRECT_URL: direct connection for migrations
	DatabaseURL string `envconfig:"DATABASE_URL"`
	DirectURL   string `envconfig:"DIRECT_URL"`

	DB DBConfig `envconfig:"DB"`

	JWT JWTConfig `envconfig:"JWT"`

	Payments PaymentsConfig `envconfig:"PAYMENTS"`

	AMQP AMQPConfig `envconfig:"AMQP"`

	Redis RedisConfig `envconfig:"REDIS"`

	RateLimit RateLimitConfig `envconfig:"RATE_LIMIT"`

	// AllowedOrigins is a comma-separated allowlist of dashboard origins. Example:
	//   https://app.example.com,http://localhost:3000
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

type DBConfig struct {
	Host     string `envconfig:"HOST" default:"localhost"`
	Port     string `envconfig:"PORT" default:"5432"`
	Name     string `envconfig:"NAME" default:"marketplace"`
	User     string `envconfig:"USER" default:"marketplace"`
	Password string `envconfig:"PASSWORD" default:"marketplace"`
	SSLMode  string `envconfig:"SSLMODE" default:"disable"`
}

type JWTConfig struct {
	Secret string        `envconfig:"SECRET"`
	Issuer string        `envconfig:"ISSUER" default:"marketplace"`
	TTL    time.Duration `envconfig:"TTL" default:"1h"`
}

type PaymentsConfig struct {
	// BaseURL of the payment collaborator. Empty in dev means captures are simulated.
	BaseURL string        `envconfig:"BASE_URL"`
	APIKey  string        `envconfig:"API_KEY"`
	Timeout time.Duration `envconfig:"TIMEOUT" default:"20s"`
}

type AMQPConfig struct {
	// URL empty disables domain event publishing.
	URL      string `envconfig:"URL"`
	Exchange string `envconfig:"EXCHANGE" default:"marketplace.bookings"`
}

type RedisConfig struct {
	Addr     string `envconfig:"ADDR"`
	Password string `envconfig:"PASSWORD"`
	DB       int    `envconfig:"DB" default:"0"`
}

type RateLimitConfig struct {
	Enabled        bool          `envconfig:"ENABLED" default:"true"`
	Capacity       int           `envconfig:"CAPACITY" default:"20"`
	RefillTokens   int           `envconfig:"REFILL_TOKENS" default:"5"`
	RefillInterval time.Duration `envconfig:"REFILL_INTERVAL" default:"1s"`
	TTL            time.Duration `envconfig:"TTL" default:"10m"`
}

func (c Config) IsProd() bool {
	return c.AppEnv == "prod"
}

func Load() Config {
	// Convenience for local dev: load variables from .env if present.
	// In production, rely on real environment variables.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		// Only malformed values land here (bad duration, bad int); defaults cover the rest.
		panic("config: " + err.Error())
	}

	// Cloud Run sets PORT. Prefer it when HTTP_ADDR isn't explicitly set.
	if cfg.HTTPAddr == "" {
		if port := os.Getenv("PORT"); port != "" {
			cfg.HTTPAddr = ":" + port
		} else {
			cfg.HTTPAddr = ":8081"
		}
	}

	return cfg
}
