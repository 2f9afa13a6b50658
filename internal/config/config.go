package config

import (
	"os"
	"strconv"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string
	DatabaseURL   string

	// Stripe
	StripeSecretKey     string
	StripeWebhookSecret string
	CheckoutSuccessPath string
	CheckoutCancelPath  string

	// Content store (headless CMS data API)
	ContentBaseURL string
	ContentDataset string
	ContentToken   string

	// Redis (booking velocity checks)
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Booking velocity limits
	MaxBookingsPerEmail int
	BookingWindowHours  int

	// Email notifications
	EmailProvider       string
	SendGridAPIKey      string
	NotifyFromEmail     string
	NotifyFromName      string
	AWSRegion           string
	AWSEndpointOverride string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),

		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		CheckoutSuccessPath: getEnv("CHECKOUT_SUCCESS_PATH", "/appointments/confirmation"),
		CheckoutCancelPath:  getEnv("CHECKOUT_CANCEL_PATH", "/appointments"),

		ContentBaseURL: getEnv("CONTENT_API_BASE_URL", ""),
		ContentDataset: getEnv("CONTENT_API_DATASET", "production"),
		ContentToken:   getEnv("CONTENT_API_TOKEN", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		MaxBookingsPerEmail: getEnvAsInt("MAX_BOOKINGS_PER_EMAIL", 5),
		BookingWindowHours:  getEnvAsInt("BOOKING_WINDOW_HOURS", 24),

		EmailProvider:       getEnv("EMAIL_PROVIDER", "sendgrid"),
		SendGridAPIKey:      getEnv("SENDGRID_API_KEY", ""),
		NotifyFromEmail:     getEnv("NOTIFY_FROM_EMAIL", ""),
		NotifyFromName:      getEnv("NOTIFY_FROM_NAME", "Wellora Care"),
		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}
