package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	ServerHost string
	ServerPort string

	// Database configuration
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Redis configuration
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Auth configuration. The token itself is issued by the external
	// identity service; we only hold the verification secret.
	JWTSecret string

	// Enrichment provider (OpenRouter-compatible) configuration
	LLMAPIKey     string
	LLMBaseURL    string
	LLMModel      string
	LLMTimeout    time.Duration
	LLMMaxRetries int

	// NutritionSync awaits enrichment before responding when true. The
	// default is the fire-and-forget path; this is a deliberate switch,
	// not something inferred from other settings.
	NutritionSync bool

	// AtomicWrites wraps the recipe write sequence in a database
	// transaction. Disable only for stores without transaction support;
	// the coordinator then falls back to compensating deletes.
	AtomicWrites bool

	// S3 image storage
	S3Bucket  string
	AWSRegion string
}

// LoadConfig creates a new Config instance from environment variables,
// falling back to secret files for credentials.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		ServerHost:    getEnv("SERVER_HOST", "0.0.0.0"),
		ServerPort:    getEnv("SERVER_PORT", "8080"),
		DBHost:        getEnv("DB_HOST", "localhost"),
		DBPort:        getEnv("DB_PORT", "5432"),
		DBUser:        getEnv("DB_USER", "postgres"),
		DBPassword:    getSecret("DB_PASSWORD"),
		DBName:        getEnv("DB_NAME", "simmer"),
		DBSSLMode:     getEnv("DB_SSL_MODE", "disable"),
		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getSecret("REDIS_PASSWORD"),
		JWTSecret:     getSecret("JWT_SECRET"),
		LLMAPIKey:     getSecret("OPENROUTER_API_KEY"),
		LLMBaseURL:    getEnv("OPENROUTER_API_URL", "https://openrouter.ai/api"),
		LLMModel:      getEnv("LLM_MODEL", "openai/gpt-4o-mini"),
		LLMTimeout:    time.Duration(getEnvInt("LLM_TIMEOUT_MS", 15000)) * time.Millisecond,
		LLMMaxRetries: getEnvInt("LLM_MAX_RETRIES", 3),
		NutritionSync: getEnvBool("NUTRITION_SYNC", false),
		AtomicWrites:  getEnvBool("DB_ATOMIC_WRITES", true),
		S3Bucket:      getEnv("S3_BUCKET_NAME", "simmer-recipe-images"),
		AWSRegion:     getEnv("AWS_REGION", ""),
	}
	cfg.RedisDB = getEnvInt("REDIS_DB", 0)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.LLMMaxRetries < 0 {
		return fmt.Errorf("LLM_MAX_RETRIES must not be negative")
	}
	if cfg.LLMTimeout <= 0 {
		return fmt.Errorf("LLM_TIMEOUT_MS must be positive")
	}
	return nil
}

// DSN builds the Postgres connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode,
	)
}

// RedisAddr builds the Redis address.
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// getSecret reads KEY, then the file named by KEY_FILE (Docker secrets).
func getSecret(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	if path := os.Getenv(key + "_FILE"); path != "" {
		if data, err := os.ReadFile(path); err == nil {
			return strings.TrimSpace(string(data))
		}
	}
	return ""
}
