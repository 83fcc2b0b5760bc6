package config

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
)

// Config is the process configuration, read from the environment.
type Config struct {
	DatabaseURL   string
	RedisURL      string
	WeatherAPIKey string
	WeatherAPIURL string
	BearerToken   string
	Port          string
	MigrationsDir string
}

// Load reads configuration from a .env file (when present) and the
// environment. DATABASE_URL, REDIS_URL, WEATHER_API_KEY, and BEARER_TOKEN
// are required.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file loaded", "err", err)
	}

	cfg := &Config{
		WeatherAPIURL: getenvDefault("WEATHER_API_URL", "https://api.weatherapi.com/v1"),
		Port:          getenvDefault("PORT", "8080"),
		MigrationsDir: getenvDefault("MIGRATIONS_DIR", "migrations"),
	}

	var err error
	if cfg.DatabaseURL, err = requireEnv("DATABASE_URL"); err != nil {
		return nil, err
	}
	if cfg.RedisURL, err = requireEnv("REDIS_URL"); err != nil {
		return nil, err
	}
	if cfg.WeatherAPIKey, err = requireEnv("WEATHER_API_KEY"); err != nil {
		return nil, err
	}
	if cfg.BearerToken, err = requireEnv("BEARER_TOKEN"); err != nil {
		return nil, err
	}

	return cfg, nil
}

func requireEnv(key string) (string, error) {
	v := os.Getenv(key)
	if v == "" {
		return "", fmt.Errorf("required environment variable %s not set", key)
	}
	return v, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
