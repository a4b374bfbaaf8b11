package config

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
)

// localEnvFile holds developer overrides for the storefront variables
// (DATABASE_URL, REDIS_ADDR, JWT_SECRET, KAFKA_BROKERS and the rest Load reads).
const localEnvFile = ".env.local"

// LoadEnv prepares the process environment for Load and returns APP_ENV,
// defaulting it to "development". Only APP_ENV=local reads .env.local, so
// deployed lambdas and the API server are configured purely by their
// environment.
func LoadEnv() string {
	appEnv := os.Getenv("APP_ENV")
	if appEnv == "" {
		appEnv = "development"
		os.Setenv("APP_ENV", appEnv)
	}
	if appEnv != "local" {
		slog.Debug("not loading env file outside local", "app_env", appEnv)
		return appEnv
	}
	if err := loadEnvFile(localEnvFile); err != nil {
		slog.Warn("env file not loaded, relying on process environment", "file", localEnvFile, "error", err)
	}
	return appEnv
}

// loadEnvFile applies path without overriding variables that are already
// set, so an exported DATABASE_URL beats the file.
func loadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		return err
	}
	slog.Info("loaded env file", "file", path)
	return nil
}
