package utils

import (
	"errors"
	"io/fs"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Redis    RedisConfig
	RabbitMQ RabbitMQConfig
	Stripe   StripeConfig
	Pricing  PricingConfig
	FX       FXConfig
	Retry    RetryConfig
	Tracing  TracingConfig
}

type AppConfig struct {
	Name    string
	Port    string
	Debug   bool
	LogPath string
	Env     string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	SSLMode  string
	MaxConns int32
}

// RedisConfig backs the webhook retry queue. Empty Addr disables it.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RabbitMQConfig backs booking notifications. Empty URL falls back to log-only notifications.
type RabbitMQConfig struct {
	URL      string
	Exchange string
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
}

type PricingConfig struct {
	TaxRate         float64
	CommissionRate  float64
	PayoutDelayDays int
	Precision       int32
}

type FXConfig struct {
	BaseURL string
	APIKey  string
	TTL     time.Duration
	Timeout time.Duration
}

type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
}

type TracingConfig struct {
	Endpoint string
}

func LoadConfig() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.SetConfigType("env")

	// Set defaults
	viper.SetDefault("APP_NAME", "agro-booking")
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("DEBUG", false)
	viper.SetDefault("ENV", "dev")
	viper.SetDefault("LOG_PATH", "logs/")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("DB_MAX_CONNS", 10)
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("RABBITMQ_EXCHANGE", "booking.events")
	viper.SetDefault("PRICING_TAX_RATE", 0.12)
	viper.SetDefault("PAYMENT_COMMISSION_RATE", 0.10)
	viper.SetDefault("PAYOUT_DELAY_DAYS", 7)
	viper.SetDefault("PRICING_PRECISION", 2)
	viper.SetDefault("FX_BASE_URL", "https://api.exchangerate-api.com/v4")
	viper.SetDefault("FX_TTL", "4h")
	viper.SetDefault("FX_TIMEOUT", "5s")
	viper.SetDefault("RETRY_MAX_ATTEMPTS", 5)
	viper.SetDefault("RETRY_BASE_DELAY", "5s")

	viper.AutomaticEnv()

	// .env is optional, environment variables alone are enough in containers
	if err := viper.ReadInConfig(); err != nil {
		var pathErr *fs.PathError
		if !errors.As(err, &pathErr) {
			return nil, err
		}
	}

	config := &Config{
		App: AppConfig{
			Name:    viper.GetString("APP_NAME"),
			Port:    viper.GetString("PORT"),
			Debug:   viper.GetBool("DEBUG"),
			LogPath: viper.GetString("LOG_PATH"),
			Env:     viper.GetString("ENV"),
		},
		Database: DatabaseConfig{
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetString("DB_PORT"),
			Name:     viper.GetString("DB_NAME"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASS"),
			SSLMode:  viper.GetString("DB_SSLMODE"),
			MaxConns: viper.GetInt32("DB_MAX_CONNS"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("REDIS_ADDR"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		RabbitMQ: RabbitMQConfig{
			URL:      viper.GetString("RABBITMQ_URL"),
			Exchange: viper.GetString("RABBITMQ_EXCHANGE"),
		},
		Stripe: StripeConfig{
			SecretKey:     viper.GetString("STRIPE_SECRET_KEY"),
			WebhookSecret: viper.GetString("STRIPE_WEBHOOK_SECRET"),
		},
		Pricing: PricingConfig{
			TaxRate:         viper.GetFloat64("PRICING_TAX_RATE"),
			CommissionRate:  viper.GetFloat64("PAYMENT_COMMISSION_RATE"),
			PayoutDelayDays: viper.GetInt("PAYOUT_DELAY_DAYS"),
			Precision:       viper.GetInt32("PRICING_PRECISION"),
		},
		FX: FXConfig{
			BaseURL: viper.GetString("FX_BASE_URL"),
			APIKey:  viper.GetString("FX_API_KEY"),
			TTL:     viper.GetDuration("FX_TTL"),
			Timeout: viper.GetDuration("FX_TIMEOUT"),
		},
		Retry: RetryConfig{
			MaxRetries: viper.GetInt("RETRY_MAX_ATTEMPTS"),
			BaseDelay:  viper.GetDuration("RETRY_BASE_DELAY"),
		},
		Tracing: TracingConfig{
			Endpoint: viper.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
		},
	}

	return config, nil
}
