package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port         int
	DatabasePath string
	LogLevel     string
	DevMode      bool

	// Market data providers
	BrapiToken    string // optional, free tier works without it
	BrapiBaseURL  string
	YahooBaseURL  string
	BCBBaseURL    string
	QuoteCacheTTL time.Duration // quote batches
	ListCacheTTL  time.Duration // curated highlights lists
	MacroCacheTTL time.Duration // macro indicator series

	// Batch fetcher tuning
	BatchSize  int
	BatchDelay time.Duration
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Port:         getEnvAsInt("PORT", 8000),
		DatabasePath: getEnv("DATABASE_PATH", "./data/carteira.db"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		DevMode:      getEnvAsBool("DEV_MODE", false),

		BrapiToken:   getEnv("BRAPI_TOKEN", ""),
		BrapiBaseURL: getEnv("BRAPI_BASE_URL", "https://brapi.dev/api"),
		YahooBaseURL: getEnv("YAHOO_BASE_URL", "https://query1.finance.yahoo.com/v7/finance/quote"),
		BCBBaseURL:   getEnv("BCB_BASE_URL", "https://api.bcb.gov.br/dados/serie/bcdata.sgs"),

		QuoteCacheTTL: getEnvAsDuration("QUOTE_CACHE_TTL", 30*time.Minute),
		ListCacheTTL:  getEnvAsDuration("LIST_CACHE_TTL", 3*time.Hour),
		MacroCacheTTL: getEnvAsDuration("MACRO_CACHE_TTL", time.Hour),

		BatchSize:  getEnvAsInt("QUOTE_BATCH_SIZE", 3),
		BatchDelay: getEnvAsDuration("QUOTE_BATCH_DELAY", 5*time.Second),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("QUOTE_BATCH_SIZE must be at least 1")
	}

	// BRAPI_TOKEN is optional: without it only the provider's free tickers
	// resolve through brapi, everything else degrades to the other tiers.

	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
