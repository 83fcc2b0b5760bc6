// Package syncer is the synchronization engine: it orchestrates remote
// fetches, writes results into the cache store, and exposes read and watch
// views over the cached data.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/simpleweather/weathersync/internal/weather"
	"github.com/simpleweather/weathersync/internal/weatherapi"
)

// ErrNotFound is returned when an operation references an unknown location.
var ErrNotFound = errors.New("location not found")

// forecastHorizonDays is the forecast window requested on every remote
// fetch.
const forecastHorizonDays = 7

// syncConcurrency bounds how many locations SyncAllCities refreshes at
// once.
const syncConcurrency = 4

// Engine is the synchronization core. All public operations trap their own
// errors and report them as return values; none panics past its boundary.
// Writes are full-row replacements, so concurrent operations on the same
// location interleave safely with last-write-wins semantics.
type Engine struct {
	store   Store
	remote  RemoteClient
	limiter *rate.Limiter
	log     *slog.Logger

	readings  *watchHub[*weather.CurrentReading]
	forecasts *watchHub[[]weather.ForecastDay]
	locations *watchHub[[]weather.TrackedLocation]
}

// locationsKey is the single watch key for the tracked-locations list.
const locationsKey = "locations"

// NewEngine constructs an Engine with a default outbound rate limit of one
// request per second with a small burst.
func NewEngine(store Store, remote RemoteClient, log *slog.Logger) *Engine {
	return NewEngineWithLimiter(store, remote, rate.NewLimiter(rate.Limit(1), 5), log)
}

// NewEngineWithLimiter constructs an Engine with a custom rate limiter
// (for tests, pass rate.NewLimiter(rate.Inf, 0)).
func NewEngineWithLimiter(store Store, remote RemoteClient, limiter *rate.Limiter, log *slog.Logger) *Engine {
	return &Engine{
		store:     store,
		remote:    remote,
		limiter:   limiter,
		log:       log,
		readings:  newWatchHub[*weather.CurrentReading](),
		forecasts: newWatchHub[[]weather.ForecastDay](),
		locations: newWatchHub[[]weather.TrackedLocation](),
	}
}

// GetWeather returns the current reading for a city.
//
// With fetchRemote true it always fetches a 7-day forecast from the remote
// API, replaces the cached reading and the full forecast set, and returns
// the fresh reading. With fetchRemote false it serves the cached reading
// for a case-insensitive name match; when the city is unknown or has no
// cached reading it falls through to a live fetch instead of failing.
func (e *Engine) GetWeather(ctx context.Context, city string, fetchRemote bool) (*weather.CurrentReading, error) {
	if fetchRemote {
		return e.fetchAndCache(ctx, city, true)
	}

	loc, err := e.store.FindLocationByCity(ctx, city)
	if err != nil {
		return nil, fmt.Errorf("looking up city %s: %w", city, err)
	}
	if loc != nil {
		reading, err := e.store.GetReading(ctx, loc.ID)
		if err != nil {
			return nil, fmt.Errorf("reading cache for %s: %w", city, err)
		}
		if reading != nil {
			return reading, nil
		}
	}

	// Cache miss is not a failure: escalate to a live fetch.
	return e.fetchAndCache(ctx, city, true)
}

// GetWeatherByCoordinates always fetches remotely using a "lat,lon" query.
// Only the current reading is persisted; the fetched forecast is not.
func (e *Engine) GetWeatherByCoordinates(ctx context.Context, lat, lon float64) (*weather.CurrentReading, error) {
	return e.fetchAndCache(ctx, fmt.Sprintf("%f,%f", lat, lon), false)
}

// RefreshWeather performs a full remote re-fetch for a tracked location.
func (e *Engine) RefreshWeather(ctx context.Context, locationID uuid.UUID) (*weather.CurrentReading, error) {
	loc, err := e.store.GetLocation(ctx, locationID)
	if err != nil {
		return nil, fmt.Errorf("resolving location %s: %w", locationID, err)
	}
	if loc == nil {
		return nil, fmt.Errorf("refreshing %s: %w", locationID, ErrNotFound)
	}
	return e.GetWeather(ctx, loc.Name, true)
}

// GetForecast returns the cached forecast days for a city, ordered by date.
// It never fetches remotely regardless of fetchRemote; forecasts enter the
// cache through GetWeather. An unknown city yields an empty result.
func (e *Engine) GetForecast(ctx context.Context, city string, fetchRemote bool) ([]weather.ForecastDay, error) {
	_ = fetchRemote

	loc, err := e.store.FindLocationByCity(ctx, city)
	if err != nil {
		return nil, fmt.Errorf("looking up city %s: %w", city, err)
	}
	if loc == nil {
		return nil, nil
	}

	days, err := e.store.GetForecast(ctx, loc.ID)
	if err != nil {
		return nil, fmt.Errorf("reading forecast for %s: %w", city, err)
	}
	return days, nil
}

// SaveCity tracks a new location. It is idempotent: an existing
// (name, country) row is returned unchanged.
func (e *Engine) SaveCity(ctx context.Context, name, country string, lat, lon float64) (*weather.TrackedLocation, error) {
	existing, err := e.store.GetLocationByName(ctx, name, country)
	if err != nil {
		return nil, fmt.Errorf("checking for existing city %s: %w", name, err)
	}
	if existing != nil {
		return existing, nil
	}

	loc := weather.TrackedLocation{
		ID:        uuid.New(),
		Name:      name,
		Country:   country,
		Latitude:  lat,
		Longitude: lon,
		AddedAt:   time.Now().UTC(),
	}
	if err := e.store.InsertLocation(ctx, loc); err != nil {
		return nil, fmt.Errorf("saving city %s: %w", name, err)
	}

	e.publishLocations(ctx)
	return &loc, nil
}

// DeleteCity removes a tracked location and its reading and forecast rows
// as one atomic unit.
func (e *Engine) DeleteCity(ctx context.Context, id uuid.UUID) error {
	if err := e.store.DeleteLocation(ctx, id); err != nil {
		return fmt.Errorf("deleting city %s: %w", id, err)
	}

	e.readings.publish(id.String(), nil)
	e.forecasts.publish(id.String(), nil)
	e.publishLocations(ctx)
	return nil
}

// ListCities returns all tracked locations, most recently added first.
func (e *Engine) ListCities(ctx context.Context) ([]weather.TrackedLocation, error) {
	locs, err := e.store.ListLocations(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing cities: %w", err)
	}
	return locs, nil
}

// SyncAllCities performs a full remote fetch-and-cache for every tracked
// location. A single location's failure is logged and does not abort the
// rest; the batch reports success even when individual locations failed.
func (e *Engine) SyncAllCities(ctx context.Context) error {
	locs, err := e.store.ListLocations(ctx)
	if err != nil {
		return fmt.Errorf("listing cities for sync: %w", err)
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(syncConcurrency)

	for _, loc := range locs {
		loc := loc
		g.Go(func() error {
			if _, err := e.GetWeather(gCtx, loc.Name, true); err != nil {
				e.log.Warn("sync failed for city", "city", loc.Name, "err", err)
			}
			return nil
		})
	}

	// Per-item failures are swallowed above; Wait only reports ctx errors.
	if err := g.Wait(); err != nil {
		return fmt.Errorf("syncing cities: %w", err)
	}
	return nil
}

// WatchWeather subscribes to the current reading of a location. The channel
// carries the latest cached reading immediately (nil when none exists) and
// a new value after every write. The cancel func releases the subscription.
func (e *Engine) WatchWeather(ctx context.Context, locationID uuid.UUID) (<-chan *weather.CurrentReading, func(), error) {
	latest, err := e.store.GetReading(ctx, locationID)
	if err != nil {
		return nil, nil, fmt.Errorf("priming weather watch for %s: %w", locationID, err)
	}
	ch, cancel := e.readings.subscribe(locationID.String(), latest)
	return ch, cancel, nil
}

// WatchForecast subscribes to the forecast list of a location, date
// ascending.
func (e *Engine) WatchForecast(ctx context.Context, locationID uuid.UUID) (<-chan []weather.ForecastDay, func(), error) {
	latest, err := e.store.GetForecast(ctx, locationID)
	if err != nil {
		return nil, nil, fmt.Errorf("priming forecast watch for %s: %w", locationID, err)
	}
	ch, cancel := e.forecasts.subscribe(locationID.String(), latest)
	return ch, cancel, nil
}

// WatchLocations subscribes to the tracked-locations list, most recently
// added first.
func (e *Engine) WatchLocations(ctx context.Context) (<-chan []weather.TrackedLocation, func(), error) {
	latest, err := e.store.ListLocations(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("priming locations watch: %w", err)
	}
	ch, cancel := e.locations.subscribe(locationsKey, latest)
	return ch, cancel, nil
}

// fetchAndCache fetches the query remotely and writes the results to the
// cache store. The forecast set is persisted only when persistForecast is
// set; the coordinates path deliberately stores the reading alone.
func (e *Engine) fetchAndCache(ctx context.Context, query string, persistForecast bool) (*weather.CurrentReading, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait canceled: %w", err)
	}

	resp, err := e.remote.Forecast(ctx, query, forecastHorizonDays)
	if err != nil {
		return nil, fmt.Errorf("fetching weather for %s: %w", query, err)
	}

	loc, err := e.ensureLocation(ctx, resp.Location)
	if err != nil {
		return nil, err
	}

	reading := mapReading(loc.ID, resp)
	if err := e.store.UpsertReading(ctx, reading); err != nil {
		return nil, fmt.Errorf("caching reading for %s: %w", resp.Location.Name, err)
	}
	e.readings.publish(loc.ID.String(), &reading)

	if persistForecast && resp.Forecast != nil {
		days := mapForecastDays(loc.ID, resp.Forecast.ForecastDay)
		if err := e.store.ReplaceForecast(ctx, loc.ID, days); err != nil {
			return nil, fmt.Errorf("caching forecast for %s: %w", resp.Location.Name, err)
		}
		e.forecasts.publish(loc.ID.String(), days)
	}

	return &reading, nil
}

// ensureLocation resolves the tracked location for a fetched response,
// creating it on the first successful fetch of a previously-unknown place.
func (e *Engine) ensureLocation(ctx context.Context, apiLoc weatherapi.Location) (*weather.TrackedLocation, error) {
	loc, err := e.store.GetLocationByName(ctx, apiLoc.Name, apiLoc.Country)
	if err != nil {
		return nil, fmt.Errorf("resolving location %s: %w", apiLoc.Name, err)
	}
	if loc != nil {
		return loc, nil
	}

	created := weather.TrackedLocation{
		ID:        uuid.New(),
		Name:      apiLoc.Name,
		Country:   apiLoc.Country,
		Latitude:  apiLoc.Lat,
		Longitude: apiLoc.Lon,
		AddedAt:   time.Now().UTC(),
	}
	if err := e.store.InsertLocation(ctx, created); err != nil {
		return nil, fmt.Errorf("tracking new location %s: %w", apiLoc.Name, err)
	}

	e.publishLocations(ctx)
	return &created, nil
}

func (e *Engine) publishLocations(ctx context.Context) {
	locs, err := e.store.ListLocations(ctx)
	if err != nil {
		e.log.Warn("publishing locations failed", "err", err)
		return
	}
	e.locations.publish(locationsKey, locs)
}

// mapReading converts an upstream response into the cached reading shape.
func mapReading(locationID uuid.UUID, resp *weatherapi.Response) weather.CurrentReading {
	return weather.CurrentReading{
		LocationID:    locationID,
		CityName:      resp.Location.Name,
		Country:       resp.Location.Country,
		TempC:         resp.Current.TempC,
		TempF:         resp.Current.TempF,
		FeelsLikeC:    resp.Current.FeelsLikeC,
		FeelsLikeF:    resp.Current.FeelsLikeF,
		Condition:     resp.Current.Condition.Text,
		ConditionIcon: resp.Current.Condition.Icon,
		Humidity:      resp.Current.Humidity,
		WindKph:       resp.Current.WindKph,
		WindMph:       resp.Current.WindMph,
		WindDir:       resp.Current.WindDir,
		PressureMb:    resp.Current.PressureMb,
		VisibilityKm:  resp.Current.VisKm,
		UV:            resp.Current.UV,
		LastUpdated:   resp.Current.LastUpdatedEpoch,
		Latitude:      resp.Location.Lat,
		Longitude:     resp.Location.Lon,
	}
}

// mapForecastDays converts upstream forecast days into cache rows.
func mapForecastDays(locationID uuid.UUID, days []weatherapi.ForecastDay) []weather.ForecastDay {
	out := make([]weather.ForecastDay, 0, len(days))
	for _, d := range days {
		out = append(out, weather.ForecastDay{
			LocationID:    locationID,
			Date:          d.Date,
			MaxTempC:      d.Day.MaxTempC,
			MaxTempF:      d.Day.MaxTempF,
			MinTempC:      d.Day.MinTempC,
			MinTempF:      d.Day.MinTempF,
			Condition:     d.Day.Condition.Text,
			ConditionIcon: d.Day.Condition.Icon,
			ChanceOfRain:  d.Day.DailyChanceOfRain,
			ChanceOfSnow:  d.Day.DailyChanceOfSnow,
			AvgHumidity:   d.Day.AvgHumidity,
			UV:            d.Day.UV,
		})
	}
	return out
}
