package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simpleweather/weathersync/internal/config"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/weathersync")
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	t.Setenv("WEATHER_API_KEY", "test-key")
	t.Setenv("BEARER_TOKEN", "test-token")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "https://api.weatherapi.com/v1", cfg.WeatherAPIURL)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "migrations", cfg.MigrationsDir)
	assert.Equal(t, "test-key", cfg.WeatherAPIKey)
}

func TestLoad_Overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("WEATHER_API_URL", "http://127.0.0.1:9999/v1")
	t.Setenv("PORT", "9090")
	t.Setenv("MIGRATIONS_DIR", "/opt/migrations")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "http://127.0.0.1:9999/v1", cfg.WeatherAPIURL)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "/opt/migrations", cfg.MigrationsDir)
}

func TestLoad_MissingRequiredVariable(t *testing.T) {
	for _, key := range []string{"DATABASE_URL", "REDIS_URL", "WEATHER_API_KEY", "BEARER_TOKEN"} {
		t.Run(key, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(key, "")

			_, err := config.Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}
}
