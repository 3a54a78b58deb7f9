package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pjojoa/DocuMarval/internal/logger"
)

// Config carries all runtime settings for bill extraction. Values come from
// the environment (a .env file is loaded in main via godotenv).
type Config struct {
	// Gemini Configuration
	GeminiAPIKey string
	GeminiModel  string

	// Document limits
	MaxPDFSize int64 // bytes
	MaxPages   int

	// Rasterization
	DPI int

	// Extraction behavior
	ConfidenceThreshold float64
	MaxWorkers          int
	RemoteTimeout       time.Duration

	// Rate limiting for the remote engine
	RateLimitCalls  int
	RateLimitWindow time.Duration

	// Result cache
	CacheTTL        time.Duration
	CacheMaxEntries int

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

// Load reads configuration from the environment and validates it.
func Load() (*Config, error) {
	config := &Config{
		GeminiAPIKey:        getEnv("GEMINI_API_KEY", ""),
		GeminiModel:         getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		MaxPDFSize:          getEnvInt64("MAX_PDF_SIZE", 50*1024*1024),
		MaxPages:            getEnvInt("MAX_PAGES", 200),
		DPI:                 getEnvInt("DPI", 200),
		ConfidenceThreshold: getEnvFloat("CONFIDENCE_THRESHOLD", 0.8),
		MaxWorkers:          getEnvInt("MAX_WORKERS", 4),
		RemoteTimeout:       getEnvDuration("REMOTE_TIMEOUT", 30*time.Second),
		RateLimitCalls:      getEnvInt("RATE_LIMIT_CALLS", 40),
		RateLimitWindow:     getEnvDuration("RATE_LIMIT_WINDOW", 60*time.Second),
		CacheTTL:            getEnvDuration("CACHE_TTL", 24*time.Hour),
		CacheMaxEntries:     getEnvInt("CACHE_MAX_ENTRIES", 500),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		LogFormat:           getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:       getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:           getEnv("LOG_OUTPUT", "stdout"),
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) validate() error {
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required")
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("CONFIDENCE_THRESHOLD must be within [0,1], got %v", c.ConfidenceThreshold)
	}
	if c.MaxWorkers < 1 {
		return fmt.Errorf("MAX_WORKERS must be at least 1")
	}
	if c.RateLimitCalls < 1 {
		return fmt.Errorf("RATE_LIMIT_CALLS must be at least 1")
	}
	if c.DPI < 72 {
		return fmt.Errorf("DPI must be at least 72, got %d", c.DPI)
	}
	return nil
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration reads a duration either as a Go duration string ("90s") or,
// for compatibility with the legacy settings, as a bare number of seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
