package config

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Store backends
const (
	StoreFirestore = "firestore"
	StoreMongo     = "mongo"
	StoreMemory    = "memory"
)

// Trigger modes. Exactly one path delivers each write; serving both would
// notify every audience twice.
const (
	TriggerHTTP  = "http"
	TriggerWatch = "watch"
)

type Config struct {
	Port                    string `validate:"required,numeric"`
	Env                     string `validate:"oneof=development production"`
	LogLevel                string `validate:"oneof=debug info warn error"`
	StoreBackend            string `validate:"oneof=firestore mongo memory"`
	TriggerMode             string `validate:"oneof=http watch"`
	FirebaseCredentialsPath string
	FirebaseProjectID       string
	MongoURI                string `validate:"required_if=StoreBackend mongo"`
	MongoDatabase           string `validate:"required_if=StoreBackend mongo"`
	DeliveryLogDSN          string
	BaseURL                 string `validate:"required,url"`
	PushAudience            string
}

// Load reads the configuration from the environment, after loading a .env
// file if one exists.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using process environment")
	}

	cfg := &Config{
		Port:                    getEnv("PORT", "8080"),
		Env:                     getEnv("ENV", "development"),
		LogLevel:                getEnv("LOG_LEVEL", "info"),
		StoreBackend:            getEnv("STORE_BACKEND", StoreFirestore),
		TriggerMode:             getEnv("TRIGGER_MODE", TriggerHTTP),
		FirebaseCredentialsPath: getEnv("FIREBASE_CREDENTIALS_PATH", ""),
		FirebaseProjectID:       getEnv("FIREBASE_PROJECT_ID", ""),
		MongoURI:                getEnv("MONGO_URI", ""),
		MongoDatabase:           getEnv("MONGO_DATABASE", "events"),
		DeliveryLogDSN:          getEnv("DELIVERY_LOG_DSN", ""),
		BaseURL:                 getEnv("BASE_URL", "https://calendar.vcgh.co.uk"),
		PushAudience:            getEnv("PUSH_AUDIENCE", ""),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration values
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.TriggerMode != TriggerHTTP && c.StoreBackend != StoreFirestore {
		return fmt.Errorf("invalid configuration: TRIGGER_MODE=%s needs STORE_BACKEND=firestore", c.TriggerMode)
	}
	return nil
}

// WatchEnabled reports whether Firestore snapshot watchers should run
func (c *Config) WatchEnabled() bool {
	return c.TriggerMode == TriggerWatch
}

// HTTPEnabled reports whether the trigger endpoints should be served
func (c *Config) HTTPEnabled() bool {
	return c.TriggerMode == TriggerHTTP
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
