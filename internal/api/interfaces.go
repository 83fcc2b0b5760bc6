package api

import (
	"context"

	"github.com/google/uuid"

	"github.com/simpleweather/weathersync/internal/weather"
)

// SyncEngine defines the synchronization-engine operations needed by
// handlers. *syncer.Engine satisfies this interface.
type SyncEngine interface {
	GetWeather(ctx context.Context, city string, fetchRemote bool) (*weather.CurrentReading, error)
	GetWeatherByCoordinates(ctx context.Context, lat, lon float64) (*weather.CurrentReading, error)
	GetForecast(ctx context.Context, city string, fetchRemote bool) ([]weather.ForecastDay, error)
	RefreshWeather(ctx context.Context, locationID uuid.UUID) (*weather.CurrentReading, error)
	SaveCity(ctx context.Context, name, country string, lat, lon float64) (*weather.TrackedLocation, error)
	DeleteCity(ctx context.Context, id uuid.UUID) error
	ListCities(ctx context.Context) ([]weather.TrackedLocation, error)
	SyncAllCities(ctx context.Context) error
}

// SettingsStore defines the settings-bag operations needed by handlers.
// *prefs.Prefs satisfies this interface.
type SettingsStore interface {
	Settings(ctx context.Context) (weather.Settings, error)
	SetTemperatureUnit(ctx context.Context, unit string) error
	SetWindSpeedUnit(ctx context.Context, unit string) error
	SetAutoUpdate(ctx context.Context, enabled bool) error
	SetUpdateInterval(ctx context.Context, hours int) error
	SetNotifications(ctx context.Context, enabled bool) error
	SetLastLocation(ctx context.Context, lat, lon float64) error
}
