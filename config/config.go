package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Server configuration. The listen address itself belongs to the serve
	// command flags.
	Environment string

	// Redis configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// Payment provider (Stripe) configuration
	StripeBaseURL       string
	StripeAPIKey        string
	StripeWebhookSecret string
	SuccessURL          string

	// Webhook signatures older than this are rejected
	WebhookTolerance time.Duration

	// Session configuration
	SessionCacheTTL time.Duration
	CheckoutTimeout time.Duration

	// PubNub configuration
	PubNubPublishKey   string
	PubNubSubscribeKey string
	PubNubSecretKey    string

	// Rate limiting
	PublicRequestsPerMinute int

	// Monitoring
	EnableMetrics bool
}

func LoadConfig() *Config {
	return &Config{
		// Server
		Environment: getEnv("ENVIRONMENT", "development"),

		// Redis
		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		// Stripe
		StripeBaseURL:       getEnv("STRIPE_BASE_URL", "https://api.stripe.com"),
		StripeAPIKey:        getEnv("STRIPE_API_KEY", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		SuccessURL:          getEnv("SUCCESS_URL_PAYMENT", "http://localhost:3000/payment/success"),

		// Webhook
		WebhookTolerance: getEnvAsDuration("WEBHOOK_TOLERANCE", "5m"),

		// Sessions
		SessionCacheTTL: getEnvAsDuration("SESSION_CACHE_TTL", "30m"),
		CheckoutTimeout: getEnvAsDuration("CHECKOUT_TIMEOUT", "10s"),

		// PubNub
		PubNubPublishKey:   getEnv("PUBNUB_PUBLISH_KEY", ""),
		PubNubSubscribeKey: getEnv("PUBNUB_SUBSCRIBE_KEY", ""),
		PubNubSecretKey:    getEnv("PUBNUB_SECRET_KEY", ""),

		// Rate limiting
		PublicRequestsPerMinute: getEnvAsInt("PUBLIC_REQUESTS_PER_MINUTE", 60),

		// Monitoring
		EnableMetrics: getEnvAsBool("ENABLE_METRICS", true),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	// If parsing fails, fall back to the default value
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
