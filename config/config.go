package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// RabbitMQConfig holds the connection settings for the verdict publisher.
type RabbitMQConfig struct {
	Host              string
	Port              string
	User              string
	Password          string
	Exchange          string
	AuditedRoutingKey string
}

// GetAMQPURL builds the AMQP connection URL from the individual settings.
func (c *RabbitMQConfig) GetAMQPURL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%s/", c.User, c.Password, c.Host, c.Port)
}

// Config holds all configuration for the transaction audit engine.
type Config struct {
	// Database configuration
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Server configuration
	Port string

	// Vision provider configuration
	VisionProvider string // "openai", "gemini" or "stub"
	OpenAIAPIKey   string
	OpenAIModel    string
	GeminiAPIKey   string
	GeminiModel    string

	// Provider call behavior
	ProviderTimeout     time.Duration
	ProviderMaxRetries  int
	ProviderBackoffBase time.Duration

	// Worker pools
	TransactionWorkers int
	RecordWorkers      int

	// Coverage policy: minimum number of distinct evidenced material slots
	CoverageMinimum int

	// RabbitMQ
	RabbitMQ RabbitMQConfig

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables.
func Load() *Config {
	return &Config{
		// Database defaults
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "server"),
		DBPassword: getEnv("DB_PASSWORD", "secret_app"),
		DBName:     getEnv("DB_NAME", "gepp"),

		// Server defaults
		Port: getEnv("PORT", "8080"),

		// Vision provider defaults
		VisionProvider: getEnv("VISION_PROVIDER", "openai"),
		OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:    getEnv("OPENAI_MODEL", "gpt-4o"),
		GeminiAPIKey:   getEnv("GEMINI_API_KEY", ""),
		GeminiModel:    getEnv("GEMINI_MODEL", "gemini-2.0-flash"),

		// Provider call defaults
		ProviderTimeout:     getDurationEnv("PROVIDER_TIMEOUT", 30*time.Second),
		ProviderMaxRetries:  getIntEnv("PROVIDER_MAX_RETRIES", 3),
		ProviderBackoffBase: getDurationEnv("PROVIDER_BACKOFF_BASE", 1*time.Second),

		// Worker pool defaults
		TransactionWorkers: getIntEnv("TRANSACTION_WORKERS", 8),
		RecordWorkers:      getIntEnv("RECORD_WORKERS", 4),

		// Coverage defaults
		CoverageMinimum: getIntEnv("COVERAGE_MINIMUM", 4),

		RabbitMQ: RabbitMQConfig{
			Host:              getEnv("RABBITMQ_HOST", "localhost"),
			Port:              getEnv("RABBITMQ_PORT", "5672"),
			User:              getEnv("RABBITMQ_USER", "guest"),
			Password:          getEnv("RABBITMQ_PASSWORD", "guest"),
			Exchange:          getEnv("RABBITMQ_EXCHANGE", "gepp-audit"),
			AuditedRoutingKey: getEnv("RABBITMQ_AUDITED_ROUTING_KEY", "transaction.audited"),
		},

		// Logging defaults
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDurationEnv gets a duration environment variable or returns a default value
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getIntEnv gets an integer environment variable or returns a default value
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
