package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	// Server
	ServerPort int

	// Pipeline
	MergeWindow  time.Duration // points closer than this collapse into one
	GapThreshold time.Duration // inter-point gap that breaks a chart view
	ExportCap    int           // most recent points kept per battery on export

	// Batch processing
	ConcurrencyStart int
	ConcurrencyMin   int
	ConcurrencyMax   int
	DuplicatePolicy  string // "hold" or "skip"
	MaxImageBytes    int64

	// Extraction (vision LLM)
	LLMBaseURL string
	LLMAPIKey  string
	LLMModel   string

	// Logging
	LogLevel string
	LogDir   string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		ServerPort: getEnvInt("SERVER_PORT", 8080),

		MergeWindow:  time.Duration(getEnvInt("MERGE_WINDOW_MS", 300000)) * time.Millisecond,
		GapThreshold: time.Duration(getEnvInt("GAP_THRESHOLD_MS", 7200000)) * time.Millisecond,
		ExportCap:    getEnvInt("EXPORT_POINT_CAP", 500),

		ConcurrencyStart: getEnvInt("CONCURRENCY_START", 5),
		ConcurrencyMin:   getEnvInt("CONCURRENCY_MIN", 2),
		ConcurrencyMax:   getEnvInt("CONCURRENCY_MAX", 15),
		DuplicatePolicy:  getEnv("DUPLICATE_POLICY", "hold"),
		MaxImageBytes:    int64(getEnvInt("MAX_IMAGE_BYTES", 10*1024*1024)),

		LLMBaseURL: getEnv("LLM_BASE_URL", ""),
		LLMAPIKey:  getEnv("LLM_API_KEY", ""),
		LLMModel:   getEnv("LLM_MODEL", "gpt-4o-mini"),

		LogLevel: getEnv("LOG_LEVEL", "INFO"),
		LogDir:   getEnv("LOG_DIRECTORY", "./logs"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.MergeWindow <= 0 {
		return fmt.Errorf("invalid MERGE_WINDOW_MS: must be positive")
	}

	if c.GapThreshold <= c.MergeWindow {
		return fmt.Errorf("invalid GAP_THRESHOLD_MS: must exceed the merge window")
	}

	if c.ConcurrencyMin < 1 || c.ConcurrencyMax < c.ConcurrencyMin {
		return fmt.Errorf("invalid concurrency bounds: min=%d max=%d", c.ConcurrencyMin, c.ConcurrencyMax)
	}

	if c.ConcurrencyStart < c.ConcurrencyMin || c.ConcurrencyStart > c.ConcurrencyMax {
		return fmt.Errorf("invalid CONCURRENCY_START: %d (must be %d-%d)", c.ConcurrencyStart, c.ConcurrencyMin, c.ConcurrencyMax)
	}

	if c.DuplicatePolicy != "hold" && c.DuplicatePolicy != "skip" {
		return fmt.Errorf("invalid DUPLICATE_POLICY: %s (use 'hold' or 'skip')", c.DuplicatePolicy)
	}

	if c.ExportCap < 1 {
		return fmt.Errorf("invalid EXPORT_POINT_CAP: %d (must be positive)", c.ExportCap)
	}

	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
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
