package config

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config top-level struct
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Postgres   PostgresConfig   `yaml:"postgres"`
	Redis      RedisConfig      `yaml:"redis"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	RateLimit  RateLimitConfig  `yaml:"ratelimit"`
	Withdrawal WithdrawalConfig `yaml:"withdrawal"`
	Market     MarketConfig     `yaml:"market"`
	Admin      AdminConfig      `yaml:"admin"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type RateLimitConfig struct {
	RPS   int `yaml:"rps"`
	Burst int `yaml:"burst"`
}

// WithdrawalConfig carries the configured minimum payout amount.
type WithdrawalConfig struct {
	MinAmount decimal.Decimal `yaml:"min_amount"`
}

// MarketConfig seeds the price oracle when no snapshot exists yet.
type MarketConfig struct {
	DefaultPrice decimal.Decimal `yaml:"default_price"`
}

// AdminConfig is the allow-list of emails authorized for admin operations.
// It is handed to the HTTP layer explicitly, never read as process-global
// state.
type AdminConfig struct {
	Emails []string `yaml:"emails"`
}

// Load reads yaml file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	// override DSN password from env if present
	if pw := os.Getenv("POSTGRES_PASSWORD"); pw != "" {
		cfg.Postgres.DSN = cfg.Postgres.DSN + " password=" + pw
	}
	if cfg.Market.DefaultPrice.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("market.default_price must be positive, got %s", cfg.Market.DefaultPrice)
	}
	if cfg.Withdrawal.MinAmount.IsNegative() {
		return nil, fmt.Errorf("withdrawal.min_amount must not be negative")
	}
	return &cfg, nil
}
