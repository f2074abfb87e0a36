package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config carries every knob the components need. It is loaded once at
// startup and injected at construction; nothing reads the environment
// after Load returns.
type Config struct {
	HTTPAddr string

	// Document store. When DatabaseURL is empty the in-memory store is
	// used (local runs, tests).
	DatabaseURL string

	// Event stream.
	KafkaBrokers []string
	KafkaTopic   string

	// Projection collections the stock ledger fans out to. The first one
	// is canonical for reads.
	Projections []string

	// Notification channels.
	SMTPHost            string
	SMTPPort            string
	SMTPFrom            string
	SMSGatewayURL       string
	SMSGatewayAPIKey    string
	SMSSender           string
	SMSCountryPrefix    string
	NotificationTimeout time.Duration

	// Alerting.
	LowStockThreshold int

	// Operator API auth.
	JWTSecret         string
	AccessTokenExpiry time.Duration
}

// Load reads configuration from environment variables with defaults
// suitable for local development.
func Load() Config {
	return Config{
		HTTPAddr:    getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		KafkaBrokers: strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "fulfillment-events"),

		Projections: strings.Split(getEnv("STOCK_PROJECTIONS", "products_storefront,products_featured,products_admin"), ","),

		SMTPHost:            getEnv("SMTP_HOST", "localhost"),
		SMTPPort:            getEnv("SMTP_PORT", "1025"),
		SMTPFrom:            getEnv("SMTP_FROM", "orders@example.com"),
		SMSGatewayURL:       getEnv("SMS_GATEWAY_URL", "http://localhost:9090"),
		SMSGatewayAPIKey:    os.Getenv("SMS_GATEWAY_API_KEY"),
		SMSSender:           getEnv("SMS_SENDER", "SHOP"),
		SMSCountryPrefix:    getEnv("SMS_COUNTRY_PREFIX", "+254"),
		NotificationTimeout: getDuration("NOTIFICATION_TIMEOUT", 10*time.Second),

		LowStockThreshold: getInt("LOW_STOCK_THRESHOLD", 5),

		JWTSecret:         os.Getenv("JWT_SECRET"),
		AccessTokenExpiry: getDuration("ACCESS_TOKEN_EXPIRY", 15*time.Minute),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
