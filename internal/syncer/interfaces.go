package syncer

import (
	"context"

	"github.com/google/uuid"

	"github.com/simpleweather/weathersync/internal/weather"
	"github.com/simpleweather/weathersync/internal/weatherapi"
)

// Store defines the cache-store operations the engine needs.
// *storage.Store satisfies this interface.
type Store interface {
	InsertLocation(ctx context.Context, loc weather.TrackedLocation) error
	GetLocation(ctx context.Context, id uuid.UUID) (*weather.TrackedLocation, error)
	GetLocationByName(ctx context.Context, name, country string) (*weather.TrackedLocation, error)
	FindLocationByCity(ctx context.Context, name string) (*weather.TrackedLocation, error)
	ListLocations(ctx context.Context) ([]weather.TrackedLocation, error)
	DeleteLocation(ctx context.Context, id uuid.UUID) error

	UpsertReading(ctx context.Context, r weather.CurrentReading) error
	GetReading(ctx context.Context, locationID uuid.UUID) (*weather.CurrentReading, error)

	ReplaceForecast(ctx context.Context, locationID uuid.UUID, days []weather.ForecastDay) error
	GetForecast(ctx context.Context, locationID uuid.UUID) ([]weather.ForecastDay, error)
}

// RemoteClient defines the remote weather API operations the engine needs.
// *weatherapi.Client satisfies this interface.
type RemoteClient interface {
	Forecast(ctx context.Context, query string, days int) (*weatherapi.Response, error)
	Current(ctx context.Context, query string) (*weatherapi.Response, error)
}
