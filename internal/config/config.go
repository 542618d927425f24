package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Responder ResponderConfig
	Sync      SyncConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	JWTSecret          string
}

type DatabaseConfig struct {
	Connection string
}

type ResponderConfig struct {
	Provider      string // "ollama" or "scripted"
	OllamaBaseURL string
	OllamaModel   string
	Timeout       time.Duration
}

type SyncConfig struct {
	PollInterval      time.Duration
	StoreTimeout      time.Duration
	MaxAttempts       int
	BackoffBase       time.Duration
	BackoffCap        time.Duration
	SnapshotStaleness time.Duration
	InactivityTimeout time.Duration
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
			JWTSecret:          getEnv("JWT_SECRET", ""),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Responder: ResponderConfig{
			Provider:      getEnv("RESPONDER_PROVIDER", "ollama"),
			OllamaBaseURL: getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			OllamaModel:   getEnv("OLLAMA_MODEL", "llama3"),
			Timeout:       getEnvAsDuration("RESPONDER_TIMEOUT", 10*time.Second),
		},
		Sync: SyncConfig{
			PollInterval:      getEnvAsDuration("SYNC_POLL_INTERVAL", 2*time.Second),
			StoreTimeout:      getEnvAsDuration("STORE_TIMEOUT", 3*time.Second),
			MaxAttempts:       getEnvAsInt("RETRY_MAX_ATTEMPTS", 3),
			BackoffBase:       getEnvAsDuration("RETRY_BACKOFF_BASE", 1*time.Second),
			BackoffCap:        getEnvAsDuration("RETRY_BACKOFF_CAP", 30*time.Second),
			SnapshotStaleness: getEnvAsDuration("SNAPSHOT_STALENESS", 5*time.Minute),
			InactivityTimeout: getEnvAsDuration("SESSION_INACTIVITY_TIMEOUT", 30*time.Minute),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
