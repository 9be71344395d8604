// Package config provides configuration management for the finance coach services.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Auth       AuthConfig
	Simulation SimulationConfig
	Import     ImportConfig
	AI         AIConfig
	RateLimit  RateLimitConfig
	Logging    LoggingConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port            string
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres PostgresConfig
	Redis    RedisConfig
}

// PostgresConfig holds Postgres configuration
type PostgresConfig struct {
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	MaxConnections int
}

// URL returns the postgres:// URL form used by the migration runner
func (c PostgresConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", c.User, c.Password, c.Host, c.Port, c.Database)
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
}

// AuthConfig holds bearer token verification settings
type AuthConfig struct {
	JWTSecret string
	Issuer    string
}

// SimulationConfig holds Monte Carlo engine settings
type SimulationConfig struct {
	DefaultRuns int
	MaxRuns     int
	CacheTTL    time.Duration
}

// ImportConfig holds CSV import pipeline settings
type ImportConfig struct {
	BatchSize   int
	MaxErrorLog int
	ChunkPolicy string // best_effort or abort
	MaxCSVBytes int64
}

// AIConfig holds the completion gateway settings
type AIConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
	// InsightLimit is the number of insight requests a user may make per InsightWindow
	InsightLimit  int
	InsightWindow time.Duration
}

// RateLimitConfig holds per-user request limits (requests per second)
type RateLimitConfig struct {
	RequestsPerSecond int
	Burst             int
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// Load .env file (optional in production)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := &Config{
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8080"),
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Host:           getEnv("POSTGRES_HOST", "localhost"),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "finance_coach"),
				User:           getEnv("POSTGRES_USER", "coach"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 20),
			},
			Redis: RedisConfig{
				Host:           getEnv("REDIS_HOST", "localhost"),
				Port:           getEnv("REDIS_PORT", "6379"),
				Password:       getEnv("REDIS_PASSWORD", ""),
				DB:             getEnvAsInt("REDIS_DB", 0),
				MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 20),
			},
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
			Issuer:    getEnv("JWT_ISSUER", ""),
		},
		Simulation: SimulationConfig{
			DefaultRuns: getEnvAsInt("SIMULATION_DEFAULT_RUNS", 100),
			MaxRuns:     getEnvAsInt("SIMULATION_MAX_RUNS", 5000),
			CacheTTL:    getEnvAsDuration("SIMULATION_CACHE_TTL", 24*time.Hour),
		},
		Import: ImportConfig{
			BatchSize:   getEnvAsInt("IMPORT_BATCH_SIZE", 100),
			MaxErrorLog: getEnvAsInt("IMPORT_MAX_ERROR_LOG", 100),
			ChunkPolicy: getEnv("IMPORT_CHUNK_POLICY", "best_effort"),
			MaxCSVBytes: int64(getEnvAsInt("IMPORT_MAX_CSV_BYTES", 10<<20)),
		},
		AI: AIConfig{
			BaseURL: getEnv("AI_GATEWAY_URL", "https://api.openai.com/v1"),
			APIKey:  getEnv("AI_GATEWAY_API_KEY", ""),
			Model:   getEnv("AI_GATEWAY_MODEL", "gpt-4o-mini"),
			Timeout: getEnvAsDuration("AI_GATEWAY_TIMEOUT", 30*time.Second),

			InsightLimit:  getEnvAsInt("AI_INSIGHT_LIMIT", 20),
			InsightWindow: getEnvAsDuration("AI_INSIGHT_WINDOW", time.Hour),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvAsInt("RATE_LIMIT_RPS", 10),
			Burst:             getEnvAsInt("RATE_LIMIT_BURST", 20),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks settings that would make the services misbehave at runtime
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Simulation.DefaultRuns <= 0 {
		return fmt.Errorf("SIMULATION_DEFAULT_RUNS must be positive, got %d", c.Simulation.DefaultRuns)
	}
	if c.Simulation.MaxRuns < c.Simulation.DefaultRuns {
		return fmt.Errorf("SIMULATION_MAX_RUNS (%d) must be >= SIMULATION_DEFAULT_RUNS (%d)", c.Simulation.MaxRuns, c.Simulation.DefaultRuns)
	}
	if c.Import.BatchSize <= 0 {
		return fmt.Errorf("IMPORT_BATCH_SIZE must be positive, got %d", c.Import.BatchSize)
	}
	if c.Import.ChunkPolicy != "best_effort" && c.Import.ChunkPolicy != "abort" {
		return fmt.Errorf("IMPORT_CHUNK_POLICY must be best_effort or abort, got %q", c.Import.ChunkPolicy)
	}
	return nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
