package config

import (
	"os"
	"strconv"
)

// Config is the environment surface consumed by the server. Provider
// credentials and the webhook signing secret are owned by the deployment,
// not by this code.
type Config struct {
	HTTPAddr      string
	MySQLDSN      string
	RedisAddr     string
	PublicBaseURL string
	Currency      string

	StripeAPIKey        string
	StripeBaseURL       string
	StripeWebhookSecret string

	PayPalClientID     string
	PayPalClientSecret string
	PayPalBaseURL      string

	EffectWorkers   int
	EffectQueueSize int
	MigrationsDir   string
}

func Load() *Config {
	return &Config{
		HTTPAddr:      getenv("HTTP_ADDR", ":8080"),
		MySQLDSN:      getenv("MYSQL_DSN", "root:root@tcp(localhost:3306)/trendhive?parseTime=true"),
		RedisAddr:     getenv("REDIS_ADDR", "localhost:6379"),
		PublicBaseURL: getenv("PUBLIC_BASE_URL", "http://localhost:8080"),
		Currency:      getenv("CURRENCY", "USD"),

		StripeAPIKey:        os.Getenv("STRIPE_API_KEY"),
		StripeBaseURL:       os.Getenv("STRIPE_BASE_URL"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),

		PayPalClientID:     os.Getenv("PAYPAL_CLIENT_ID"),
		PayPalClientSecret: os.Getenv("PAYPAL_CLIENT_SECRET"),
		PayPalBaseURL:      os.Getenv("PAYPAL_BASE_URL"),

		EffectWorkers:   getenvInt("EFFECT_WORKERS", 4),
		EffectQueueSize: getenvInt("EFFECT_QUEUE_SIZE", 1024),
		MigrationsDir:   getenv("MIGRATIONS_DIR", "migrations"),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
