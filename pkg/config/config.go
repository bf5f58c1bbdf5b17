package config

import (
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/storefront/internal/core/domain"
)

type Config struct {
	AppEnv   string
	LogLevel string

	HTTPPort int
	GRPCPort int

	MySQLDSN  string
	RedisAddr string

	PaymentBaseURL   string
	PaymentAPIKey    string
	PaymentReturnURL string
	PaymentCancelURL string
	PaymentTimeout   time.Duration

	Currency       string
	RequestTimeout time.Duration
	StockDebounce  time.Duration
	HealthInterval time.Duration

	Rules domain.Rules
}

func Load() Config {
	defaults := domain.DefaultRules()

	return Config{
		AppEnv:   getEnv("APP_ENV", "dev"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		HTTPPort: getEnvInt("HTTP_PORT", 8080),
		GRPCPort: getEnvInt("GRPC_PORT", 50051),

		MySQLDSN:  getEnv("MYSQL_DSN", "root:root@tcp(localhost:3306)/storefront?parseTime=true"),
		RedisAddr: getEnv("REDIS_ADDR", "localhost:6379"),

		PaymentBaseURL:   getEnv("PAYMENT_BASE_URL", "http://localhost:9090"),
		PaymentAPIKey:    getEnv("PAYMENT_API_KEY", ""),
		PaymentReturnURL: getEnv("PAYMENT_RETURN_URL", "http://localhost:8080/api/v1/payments/return"),
		PaymentCancelURL: getEnv("PAYMENT_CANCEL_URL", "http://localhost:8080/api/v1/payments/cancel"),
		PaymentTimeout:   getEnvDuration("PAYMENT_TIMEOUT", 10*time.Second),

		Currency:       getEnv("CURRENCY", "NGN"),
		RequestTimeout: getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
		StockDebounce:  getEnvDuration("STOCK_DEBOUNCE", 400*time.Millisecond),
		HealthInterval: getEnvDuration("HEALTH_INTERVAL", 15*time.Second),

		Rules: domain.Rules{
			LowPriceThreshold:     getEnvDecimal("LOW_PRICE_THRESHOLD", defaults.LowPriceThreshold),
			MinimumQuantity:       getEnvInt("MINIMUM_QUANTITY", defaults.MinimumQuantity),
			FreeShippingThreshold: getEnvDecimal("FREE_SHIPPING_THRESHOLD", defaults.FreeShippingThreshold),
			StandardShippingFee:   getEnvDecimal("STANDARD_SHIPPING_FEE", defaults.StandardShippingFee),
			MaxSubmitAttempts:     getEnvInt("MAX_SUBMIT_ATTEMPTS", defaults.MaxSubmitAttempts),
		},
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)

	if v == "" {
		return def
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}

	return n
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func getEnvDecimal(key string, def decimal.Decimal) decimal.Decimal {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := decimal.NewFromString(v)
	if err != nil || d.IsNegative() {
		return def
	}
	return d
}
