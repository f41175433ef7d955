package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the application configuration.
type Config struct {
	ServerPort    int
	DatabasePath  string
	RemoteBaseURL string        // Base URL of the remote document store
	RemoteTimeout time.Duration // Bound on every remote query/mirror call
	RefreshCron   string        // Cron expression for the background aggregation pass
}

// Load loads configuration from environment variables or sets defaults.
func Load() (*Config, error) {
	portStr := getEnv("PORT", "8080")
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, err
	}

	timeoutMsStr := getEnv("REMOTE_TIMEOUT_MS", "5000")
	timeoutMs, err := strconv.Atoi(timeoutMsStr)
	if err != nil {
		return nil, err
	}

	return &Config{
		ServerPort:    port,
		DatabasePath:  getEnv("DATABASE_PATH", "./lexagenda.db"),
		RemoteBaseURL: getEnv("REMOTE_BASE_URL", "http://localhost:9200"),
		RemoteTimeout: time.Duration(timeoutMs) * time.Millisecond,
		RefreshCron:   getEnv("REFRESH_CRON", "*/5 * * * *"),
	}, nil
}

// Helper to get an environment variable with a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
