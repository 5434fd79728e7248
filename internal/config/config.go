package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	DatabaseURL      string
	ServerPort       string
	OpenAIKey        string
	AIModel          string
	AIBaseURL        string
	RedisURL         string
	RabbitMQURL      string
	WebhookJWTSecret string
	EnableHSTS       bool
	ServerDebugMode  bool
	OTELEnabled      bool
	OTELEndpoint     string
	OpenAPIPath      string

	// Admission control
	AdmissionWindow time.Duration // rolling window over which calls are counted
	AdmissionLimit  int64         // admitted calls allowed per window
	TokenBudget     int64         // completion token usage above which old turns are evicted
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		ServerPort:       getEnv("SERVER_PORT", "8080"),
		OpenAIKey:        getEnv("OPENAI_API_KEY", ""),
		AIModel:          getEnv("AI_MODEL", ""),
		AIBaseURL:        getEnv("AI_BASE_URL", ""),
		RedisURL:         getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RabbitMQURL:      getEnv("RABBITMQ_URL", ""),
		WebhookJWTSecret: getEnv("WEBHOOK_JWT_SECRET", ""),
		EnableHSTS:       getEnvBool("ENABLE_HSTS", false),
		ServerDebugMode:  getEnvBool("SERVER_DEBUG_MODE", false),
		OTELEnabled:      getEnvBool("OTEL_ENABLED", false),
		OTELEndpoint:     getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OpenAPIPath:      getEnv("OPENAPI_PATH", "api/openapi.yaml"),
		AdmissionWindow:  time.Duration(getEnvInt("ADMISSION_WINDOW_SECONDS", 36000)) * time.Second,
		AdmissionLimit:   int64(getEnvInt("ADMISSION_LIMIT", 1000)),
		TokenBudget:      int64(getEnvInt("TOKEN_BUDGET", 1500)),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.AdmissionWindow <= 0 {
		return nil, fmt.Errorf("ADMISSION_WINDOW_SECONDS must be positive")
	}

	if cfg.AdmissionLimit <= 0 {
		return nil, fmt.Errorf("ADMISSION_LIMIT must be positive")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
