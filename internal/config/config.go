package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	EnvConfigPath          = "CONFIG_PATH"
	EnvDBConnection        = "DB_CONNECTION"
	EnvJWTSecret           = "JWT_SECRET"
	EnvJWTExpiry           = "JWT_EXPIRY"
	EnvPort                = "PORT"
	EnvRedisAddr           = "REDIS_ADDR"
	EnvStripeSecretKey     = "STRIPE_SECRET_KEY"
	EnvStripeWebhookSecret = "STRIPE_WEBHOOK_SECRET"
	EnvStripePremiumPrice  = "STRIPE_PREMIUM_PRICE_ID"
)

// ResolveConfigPath normalizes the config path and applies defaults.
func ResolveConfigPath(p string) string {
	trimmed := strings.TrimSpace(p)
	if trimmed == "" {
		trimmed = "./config.yaml"
	}
	if abs, err := filepath.Abs(trimmed); err == nil {
		return abs
	}
	return trimmed
}

// ErrMissingDatabaseDSN indicates no database DSN is present in the config file.
var ErrMissingDatabaseDSN = errors.New("missing database dsn (set `database-dsn` or `database.dsn` in config file)")

// JWTConfig holds JWT secret and expiry settings.
type JWTConfig struct {
	Secret string        `yaml:"secret"`
	Expiry time.Duration `yaml:"expiry"`
}

// StripeConfig holds Stripe API credentials and checkout settings.
type StripeConfig struct {
	SecretKey      string `yaml:"secret-key"`
	WebhookSecret  string `yaml:"webhook-secret"`
	PremiumPriceID string `yaml:"premium-price-id"`
	SuccessURL     string `yaml:"success-url"`
	CancelURL      string `yaml:"cancel-url"`
}

// SchedulerConfig holds cron specs for the background jobs.
type SchedulerConfig struct {
	RecurringSpec string `yaml:"recurring-spec"`
	ReminderSpec  string `yaml:"reminder-spec"`
}

// RateLimitConfig holds the per-user API rate limit settings.
type RateLimitConfig struct {
	RequestsPerSecond int `yaml:"requests-per-second"`
}

// Config is the resolved application configuration.
type Config struct {
	Port        int             `yaml:"port"`
	DatabaseDSN string          `yaml:"database-dsn"`
	RedisAddr   string          `yaml:"redis-addr"`
	JWT         JWTConfig       `yaml:"jwt"`
	Stripe      StripeConfig    `yaml:"stripe"`
	Scheduler   SchedulerConfig `yaml:"scheduler"`
	RateLimit   RateLimitConfig `yaml:"rate-limit"`
}

const (
	defaultPort          = 8317
	defaultJWTExpiry     = 30 * 24 * time.Hour
	defaultRecurringSpec = "*/5 * * * *"
	defaultReminderSpec  = "* * * * *"
	defaultRateLimitRPS  = 10
)

// Load reads the YAML config file and applies environment overrides.
// A missing file is not an error; env vars can carry the whole config.
func Load(configPath string) (*Config, error) {
	cfg := &Config{
		Port: defaultPort,
		JWT:  JWTConfig{Expiry: defaultJWTExpiry},
		Scheduler: SchedulerConfig{
			RecurringSpec: defaultRecurringSpec,
			ReminderSpec:  defaultReminderSpec,
		},
		RateLimit: RateLimitConfig{RequestsPerSecond: defaultRateLimitRPS},
	}

	data, errRead := os.ReadFile(configPath)
	if errRead == nil {
		if errUnmarshal := yaml.Unmarshal(data, cfg); errUnmarshal != nil {
			return nil, fmt.Errorf("parse config file: %w", errUnmarshal)
		}
	} else if !os.IsNotExist(errRead) {
		return nil, fmt.Errorf("read config file: %w", errRead)
	}

	applyEnvOverrides(cfg)

	if cfg.Port <= 0 {
		cfg.Port = defaultPort
	}
	if cfg.JWT.Expiry <= 0 {
		cfg.JWT.Expiry = defaultJWTExpiry
	}
	if strings.TrimSpace(cfg.Scheduler.RecurringSpec) == "" {
		cfg.Scheduler.RecurringSpec = defaultRecurringSpec
	}
	if strings.TrimSpace(cfg.Scheduler.ReminderSpec) == "" {
		cfg.Scheduler.ReminderSpec = defaultReminderSpec
	}
	if cfg.RateLimit.RequestsPerSecond <= 0 {
		cfg.RateLimit.RequestsPerSecond = defaultRateLimitRPS
	}

	if strings.TrimSpace(cfg.DatabaseDSN) == "" {
		return nil, ErrMissingDatabaseDSN
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if dsn := strings.TrimSpace(os.Getenv(EnvDBConnection)); dsn != "" {
		cfg.DatabaseDSN = dsn
	}
	if portRaw := strings.TrimSpace(os.Getenv(EnvPort)); portRaw != "" {
		if port, errParse := strconv.Atoi(portRaw); errParse == nil && port > 0 {
			cfg.Port = port
		}
	}
	if addr := strings.TrimSpace(os.Getenv(EnvRedisAddr)); addr != "" {
		cfg.RedisAddr = addr
	}
	if secret := strings.TrimSpace(os.Getenv(EnvJWTSecret)); secret != "" {
		cfg.JWT.Secret = secret
	}
	if expiryRaw := strings.TrimSpace(os.Getenv(EnvJWTExpiry)); expiryRaw != "" {
		if expiry, errParse := time.ParseDuration(expiryRaw); errParse == nil && expiry > 0 {
			cfg.JWT.Expiry = expiry
		}
	}
	if key := strings.TrimSpace(os.Getenv(EnvStripeSecretKey)); key != "" {
		cfg.Stripe.SecretKey = key
	}
	if secret := strings.TrimSpace(os.Getenv(EnvStripeWebhookSecret)); secret != "" {
		cfg.Stripe.WebhookSecret = secret
	}
	if price := strings.TrimSpace(os.Getenv(EnvStripePremiumPrice)); price != "" {
		cfg.Stripe.PremiumPriceID = price
	}
}

// LoadDatabaseDSN reads only the database DSN, for tooling that does not
// need the full config.
func LoadDatabaseDSN(configPath string) (string, error) {
	if dsn := strings.TrimSpace(os.Getenv(EnvDBConnection)); dsn != "" {
		return dsn, nil
	}

	// fileConfig maps the YAML fields needed for DSN resolution.
	type fileConfig struct {
		DatabaseDSN string `yaml:"database-dsn"`
		Database    struct {
			DSN string `yaml:"dsn"`
		} `yaml:"database"`
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return "", fmt.Errorf("read config file: %w", err)
	}

	var cfg fileConfig
	if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
		return "", fmt.Errorf("parse config file: %w", errUnmarshal)
	}

	if dsn := strings.TrimSpace(cfg.DatabaseDSN); dsn != "" {
		return dsn, nil
	}
	if dsn := strings.TrimSpace(cfg.Database.DSN); dsn != "" {
		return dsn, nil
	}
	return "", ErrMissingDatabaseDSN
}
