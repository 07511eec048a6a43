package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	BaseURL     string
	WSBaseURL   string
	Token       string
	Environment string

	// Transaction list polling. StaleAfter must stay below PollInterval so a
	// manual refresh after a send is not suppressed by cache freshness.
	PollInterval time.Duration
	StaleAfter   time.Duration
	PollRetries  int

	// Dev server only.
	ServerPort string
	JWTSecret  string
}

func Load() (*Config, error) {
	godotenv.Load()

	config := &Config{
		BaseURL:      getEnv("MARKETLIVE_BASE_URL", "http://localhost:8080"),
		WSBaseURL:    getEnv("MARKETLIVE_WS_URL", "ws://localhost:8080"),
		Token:        getEnv("MARKETLIVE_TOKEN", ""),
		Environment:  getEnv("ENVIRONMENT", "development"),
		PollInterval: getEnvAsDuration("MARKETLIVE_POLL_INTERVAL", 30*time.Second),
		StaleAfter:   getEnvAsDuration("MARKETLIVE_STALE_AFTER", 10*time.Second),
		PollRetries:  int(getEnvAsInt64("MARKETLIVE_POLL_RETRIES", 3)),
		ServerPort:   getEnv("SERVER_PORT", "8080"),
		JWTSecret:    getEnv("JWT_SECRET", "dev-secret-key"),
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return defaultValue
}
