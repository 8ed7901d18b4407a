package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all application configuration
type Config struct {
	Environment string

	Database   DatabaseConfig
	Redis      RedisConfig
	Typesense  TypesenseConfig
	OpenAI     OpenAIConfig
	Ledger     LedgerConfig
	Anchor     AnchorConfig
	Suggestion SuggestionConfig
	OTEL       OTELConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// TypesenseConfig holds Typesense configuration
type TypesenseConfig struct {
	URL    string
	APIKey string
}

// OpenAIConfig holds completion provider configuration
type OpenAIConfig struct {
	APIKey         string
	Model          string
	RateLimitRPM   int
	RateLimitBurst int
	TimeoutSeconds int
}

// LedgerConfig holds the external ledger node configuration
type LedgerConfig struct {
	BaseURL        string
	APIKey         string
	TimeoutSeconds int
}

// AnchorConfig holds the background anchoring configuration
type AnchorConfig struct {
	MaxAttempts          int
	InitialDelaySeconds  int
	SweepIntervalSeconds int
	QueueSize            int
}

// SuggestionConfig holds the suggestion engine configuration
type SuggestionConfig struct {
	CacheTTLSeconds      int
	ConfidenceThreshold  float64
	DescriptionPrefixLen int
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	return &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "ccam_assist"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Typesense: TypesenseConfig{
			URL:    getEnv("TYPESENSE_URL", "http://localhost:8108"),
			APIKey: getEnv("TYPESENSE_API_KEY", "xyz"),
		},
		OpenAI: OpenAIConfig{
			APIKey:         getEnv("OPENAI_API_KEY", ""),
			Model:          getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			RateLimitRPM:   getEnvAsInt("OPENAI_RATE_LIMIT_RPM", 60),
			RateLimitBurst: getEnvAsInt("OPENAI_RATE_LIMIT_BURST", 5),
			TimeoutSeconds: getEnvAsInt("OPENAI_TIMEOUT_SECONDS", 20),
		},
		Ledger: LedgerConfig{
			BaseURL:        getEnv("LEDGER_BASE_URL", "http://localhost:9090"),
			APIKey:         getEnv("LEDGER_API_KEY", ""),
			TimeoutSeconds: getEnvAsInt("LEDGER_TIMEOUT_SECONDS", 10),
		},
		Anchor: AnchorConfig{
			MaxAttempts:          getEnvAsInt("ANCHOR_MAX_ATTEMPTS", 5),
			InitialDelaySeconds:  getEnvAsInt("ANCHOR_INITIAL_DELAY_SECONDS", 2),
			SweepIntervalSeconds: getEnvAsInt("ANCHOR_SWEEP_INTERVAL_SECONDS", 300),
			QueueSize:            getEnvAsInt("ANCHOR_QUEUE_SIZE", 1024),
		},
		Suggestion: SuggestionConfig{
			CacheTTLSeconds:      getEnvAsInt("SUGGESTION_CACHE_TTL_SECONDS", 3600),
			ConfidenceThreshold:  getEnvAsFloat("SUGGESTION_CONFIDENCE_THRESHOLD", 50),
			DescriptionPrefixLen: getEnvAsInt("SUGGESTION_DESCRIPTION_PREFIX_LEN", 100),
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "ccam-assist"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
	}, nil
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
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
