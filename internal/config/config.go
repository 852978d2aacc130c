package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string
	Env  string

	// Logging
	LogLevel    string
	LogEncoding string
	LogOutput   string

	// Redis: optional unless StoreDriver is redis
	RedisURL string

	// Saved poem storage: redis, postgres or file
	StoreDriver    string
	StoreKeyPrefix string
	DatabaseURL    string
	DBMaxConns     int
	MigrationsDir  string
	StoragePath    string

	// JWT
	JWTSecret string

	// Agent
	AgentProvider string
	AgentID       string
	AgentTimeout  time.Duration
	WorkerCount   int

	// Gemini AI
	GeminiAPIKey         string
	GeminiModel          string
	GeminiConcurrentReqs int

	// OpenAI compatible
	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string

	// Rate limiting
	GenerateRatePerMinute int

	// Frontend
	FrontendURL string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:                  getEnvOrDefault("PORT", "8080"),
		Env:                   getEnvOrDefault("ENV", "development"),
		LogLevel:              getEnvOrDefault("LOG_LEVEL", "info"),
		LogEncoding:           getEnvOrDefault("LOG_ENCODING", "json"),
		LogOutput:             getEnvOrDefault("LOG_OUTPUT", ""),
		RedisURL:              getEnvOrDefault("REDIS_URL", ""),
		StoreDriver:           getEnvOrDefault("STORE_DRIVER", "redis"),
		StoreKeyPrefix:        getEnvOrDefault("STORE_KEY_PREFIX", "poetica:saved_poems"),
		DBMaxConns:            getEnvAsIntOrDefault("DB_MAX_CONNS", 10),
		MigrationsDir:         getEnvOrDefault("MIGRATIONS_DIR", "migrations"),
		StoragePath:           getEnvOrDefault("STORAGE_PATH", "./data"),
		JWTSecret:             mustGetEnv("JWT_SECRET"),
		AgentProvider:         getEnvOrDefault("AGENT_PROVIDER", "gemini"),
		AgentID:               getEnvOrDefault("AGENT_ID", "poet"),
		AgentTimeout:          getEnvAsDurationOrDefault("AGENT_TIMEOUT", 60*time.Second),
		WorkerCount:           getEnvAsIntOrDefault("WORKER_COUNT", 4),
		GeminiModel:           getEnvOrDefault("GEMINI_MODEL", "gemini-2.0-flash"),
		GeminiConcurrentReqs:  getEnvAsIntOrDefault("GEMINI_CONCURRENT_REQUESTS", 5),
		OpenAIModel:           getEnvOrDefault("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL:         getEnvOrDefault("OPENAI_BASE_URL", ""),
		GenerateRatePerMinute: getEnvAsIntOrDefault("GENERATE_RATE_PER_MINUTE", 10),
		FrontendURL:           getEnvOrDefault("FRONTEND_URL", "http://localhost:5173"),
	}

	// Redis is only mandatory when it stores the library. Without it session
	// updates are fanned out in-process.
	switch cfg.StoreDriver {
	case "redis":
		cfg.RedisURL = mustGetEnv("REDIS_URL")
	case "file":
	case "postgres":
		cfg.DatabaseURL = mustGetEnv("DATABASE_URL")
	default:
		panic(fmt.Sprintf("unknown STORE_DRIVER %q (want redis, postgres or file)", cfg.StoreDriver))
	}

	switch cfg.AgentProvider {
	case "gemini":
		cfg.GeminiAPIKey = mustGetEnv("GEMINI_API_KEY")
	case "openai":
		cfg.OpenAIAPIKey = mustGetEnv("OPENAI_API_KEY")
	case "mock":
	default:
		panic(fmt.Sprintf("unknown AGENT_PROVIDER %q (want gemini, openai or mock)", cfg.AgentProvider))
	}

	return cfg
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

// getEnvAsDurationOrDefault accepts Go durations ("45s") or plain seconds.
func getEnvAsDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	if n, err := strconv.Atoi(val); err == nil {
		return time.Duration(n) * time.Second
	}
	return defaultVal
}
