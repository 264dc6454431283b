package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const PROD_STRING = "prod"

// Store backends.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Lock backends.
const (
	LockLocal = "local"
	LockRedis = "redis"
)

// Payment providers.
const (
	PaymentOffline  = "offline"
	PaymentRazorpay = "razorpay"
)

// Config holds all application configuration loaded from environment.
type Config struct {
	AppEnv       string `envconfig:"APP_ENV" default:"dev"`
	IsProduction bool   `ignored:"true"`
	ProdOrigins  string `envconfig:"PROD_ORIGINS"`
	HTTPAddr     string `envconfig:"HTTP_ADDR" default:":8080"`

	Store string `envconfig:"STORE" default:"postgres"`
	DBDSN string `envconfig:"DB_DSN"`

	JWTSecret         string        `envconfig:"JWT_SECRET" required:"true"`
	JWTAccessTokenTTL time.Duration `envconfig:"JWT_ACCESS_TOKEN_TTL" default:"15m"`
	BcryptCost        int           `envconfig:"BCRYPT_COST" default:"12"`

	LockBackend string        `envconfig:"LOCK_BACKEND" default:"local"`
	LockTTL     time.Duration `envconfig:"LOCK_TTL" default:"10s"`
	LockWait    time.Duration `envconfig:"LOCK_WAIT" default:"3s"`
	RedisURL    string        `envconfig:"REDIS_URL"`

	CatalogCacheTTL  time.Duration `envconfig:"CATALOG_CACHE_TTL" default:"30s"`
	BookingRateLimit string        `envconfig:"BOOKING_RATE_LIMIT" default:"30-M"`

	PaymentProvider       string `envconfig:"PAYMENT_PROVIDER" default:"offline"`
	RazorpayKeyID         string `envconfig:"RAZORPAY_KEY_ID"`
	RazorpayKeySecret     string `envconfig:"RAZORPAY_KEY_SECRET"`
	RazorpayWebhookSecret string `envconfig:"RAZORPAY_WEBHOOK_SECRET"`

	AMQPURL      string `envconfig:"AMQP_URL"`
	AMQPExchange string `envconfig:"AMQP_EXCHANGE" default:"booking.events"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	LogFile  string `envconfig:"LOG_FILE"`

	// Timezone interprets slot dates ("2024-06-03") that carry no offset of their own.
	Timezone string         `envconfig:"TIMEZONE" default:"UTC"`
	Location *time.Location `ignored:"true"`
}

// Load loads configuration from .env (optional) and environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Printf("failed to load .env file: %v", err)
	}

	cfg := &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks cross-field rules envconfig tags cannot express and derives computed fields.
func (cfg *Config) validate() error {
	cfg.IsProduction = cfg.AppEnv == PROD_STRING
	if cfg.IsProduction && strings.TrimSpace(cfg.ProdOrigins) == "" {
		return fmt.Errorf("PROD_ORIGINS is required when APP_ENV=%s", PROD_STRING)
	}

	switch cfg.Store {
	case StorePostgres:
		// Database DSN is required for the persistent store
		if cfg.DBDSN == "" {
			return fmt.Errorf("DB_DSN is required when STORE=%s", StorePostgres)
		}
	case StoreMemory:
	default:
		return fmt.Errorf("invalid STORE %q", cfg.Store)
	}

	switch cfg.LockBackend {
	case LockLocal:
	case LockRedis:
		if cfg.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when LOCK_BACKEND=%s", LockRedis)
		}
	default:
		return fmt.Errorf("invalid LOCK_BACKEND %q", cfg.LockBackend)
	}

	switch cfg.PaymentProvider {
	case PaymentOffline:
	case PaymentRazorpay:
		if cfg.RazorpayKeyID == "" || cfg.RazorpayKeySecret == "" || cfg.RazorpayWebhookSecret == "" {
			return fmt.Errorf("RAZORPAY_KEY_ID, RAZORPAY_KEY_SECRET and RAZORPAY_WEBHOOK_SECRET are required when PAYMENT_PROVIDER=%s", PaymentRazorpay)
		}
	default:
		return fmt.Errorf("invalid PAYMENT_PROVIDER %q", cfg.PaymentProvider)
	}

	if cfg.LockWait <= 0 || cfg.LockTTL <= 0 {
		return fmt.Errorf("LOCK_WAIT and LOCK_TTL must be positive")
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return fmt.Errorf("invalid TIMEZONE: %w", err)
	}
	cfg.Location = loc

	return nil
}
