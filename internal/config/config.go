package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig
	Groq     GroqConfig
	Dataset  DatasetConfig
	Throttle ThrottleConfig
	Cache    CacheConfig
	Agent    AgentConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	Host           string
	GinMode        string
	AllowedOrigins string
}

// GroqConfig holds Groq API configuration (OpenAI-compatible endpoint)
type GroqConfig struct {
	APIKey      string
	APIBase     string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     int // seconds
	MaxRetries  int
	Enabled     bool
}

// DatasetConfig holds spreadsheet dataset configuration
type DatasetConfig struct {
	Path       string
	SheetIndex int // zero-based; the listings live on the second sheet
	HeadRows   int // sample rows shown to the model
}

// ThrottleConfig holds rolling-window rate limit configuration
type ThrottleConfig struct {
	MaxPerMinute int
}

// CacheConfig holds query cache configuration
type CacheConfig struct {
	MaxEntries int
}

// AgentConfig holds agent loop configuration
type AgentConfig struct {
	MaxIterations int
	MaxResultRows int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (optional)
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnvAsInt("SERVER_PORT", 8080),
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			GinMode:        getEnv("GIN_MODE", "release"),
			AllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
		},
		Groq: GroqConfig{
			APIKey:      getEnv("GROQ_API_KEY", ""),
			APIBase:     getEnv("GROQ_API_BASE", "https://api.groq.com/openai/v1"),
			Model:       getEnv("GROQ_MODEL", "llama-3.3-70b-versatile"),
			Temperature: getEnvAsFloat("GROQ_TEMPERATURE", 0),
			MaxTokens:   getEnvAsInt("GROQ_MAX_TOKENS", 4096),
			Timeout:     getEnvAsInt("GROQ_TIMEOUT", 120),
			MaxRetries:  getEnvAsInt("GROQ_MAX_RETRIES", 3),
			Enabled:     getEnv("GROQ_API_KEY", "") != "",
		},
		Dataset: DatasetConfig{
			Path:       getEnv("DATASET_PATH", "data/listings.xlsx"),
			SheetIndex: getEnvAsInt("DATASET_SHEET_INDEX", 1),
			HeadRows:   getEnvAsInt("DATASET_HEAD_ROWS", 2),
		},
		Throttle: ThrottleConfig{
			MaxPerMinute: getEnvAsInt("THROTTLE_MAX_PER_MINUTE", 10),
		},
		Cache: CacheConfig{
			MaxEntries: getEnvAsInt("CACHE_MAX_ENTRIES", 512),
		},
		Agent: AgentConfig{
			MaxIterations: getEnvAsInt("AGENT_MAX_ITERATIONS", 20),
			MaxResultRows: getEnvAsInt("AGENT_MAX_RESULT_ROWS", 50),
		},
	}

	return cfg, nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid integer value for %s, using default %d", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		log.Printf("Warning: Invalid float value for %s, using default %f", key, defaultValue)
		return defaultValue
	}
	return value
}
