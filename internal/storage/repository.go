package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/simpleweather/weathersync/internal/weather"
)

// Querier abstracts the subset of pgxpool.Pool used for single-statement
// access. This allows injection of a mock in tests.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// DB combines single-statement access with transaction support.
type DB interface {
	Querier
	TxBeginner
}

// Store persists tracked locations, current readings, and forecast days.
// All writes are replace-on-conflict; a new row with the same key fully
// overwrites the prior one.
type Store struct {
	db DB
}

// NewStore constructs a Store backed by the given pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{db: pool}
}

// NewStoreWithDB constructs a Store with a custom DB (for tests).
func NewStoreWithDB(db DB) *Store {
	return &Store{db: db}
}

// ---- locations ----

const locationColumns = `id, name, country, latitude, longitude, added_at`

func scanLocation(row pgx.Row) (*weather.TrackedLocation, error) {
	var loc weather.TrackedLocation
	err := row.Scan(&loc.ID, &loc.Name, &loc.Country, &loc.Latitude, &loc.Longitude, &loc.AddedAt)
	if err != nil {
		return nil, err
	}
	return &loc, nil
}

// InsertLocation inserts a tracked location. An existing (name, country)
// row is left untouched.
func (s *Store) InsertLocation(ctx context.Context, loc weather.TrackedLocation) error {
	const q = `
		INSERT INTO locations (id, name, country, latitude, longitude, added_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (name, country) DO NOTHING
	`

	if _, err := s.db.Exec(ctx, q, loc.ID, loc.Name, loc.Country, loc.Latitude, loc.Longitude, loc.AddedAt); err != nil {
		return fmt.Errorf("inserting location %s: %w", loc.Name, err)
	}
	return nil
}

// GetLocation retrieves a tracked location by id.
// Returns nil, nil when the id is unknown.
func (s *Store) GetLocation(ctx context.Context, id uuid.UUID) (*weather.TrackedLocation, error) {
	const q = `SELECT ` + locationColumns + ` FROM locations WHERE id = $1`

	loc, err := scanLocation(s.db.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying location %s: %w", id, err)
	}
	return loc, nil
}

// GetLocationByName retrieves a tracked location by (name, country) with
// a case-insensitive name match. Returns nil, nil when absent.
func (s *Store) GetLocationByName(ctx context.Context, name, country string) (*weather.TrackedLocation, error) {
	const q = `SELECT ` + locationColumns + ` FROM locations WHERE LOWER(name) = LOWER($1) AND country = $2`

	loc, err := scanLocation(s.db.QueryRow(ctx, q, name, country))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying location %s, %s: %w", name, country, err)
	}
	return loc, nil
}

// FindLocationByCity retrieves a tracked location by case-insensitive city
// name alone, ignoring country. Returns nil, nil when absent.
func (s *Store) FindLocationByCity(ctx context.Context, name string) (*weather.TrackedLocation, error) {
	const q = `SELECT ` + locationColumns + ` FROM locations WHERE LOWER(name) = LOWER($1) LIMIT 1`

	loc, err := scanLocation(s.db.QueryRow(ctx, q, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying location by city %s: %w", name, err)
	}
	return loc, nil
}

// ListLocations returns all tracked locations, most recently added first.
func (s *Store) ListLocations(ctx context.Context) ([]weather.TrackedLocation, error) {
	const q = `SELECT ` + locationColumns + ` FROM locations ORDER BY added_at DESC`

	rows, err := s.db.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("querying locations: %w", err)
	}
	defer rows.Close()

	var locs []weather.TrackedLocation
	for rows.Next() {
		var loc weather.TrackedLocation
		if err := rows.Scan(&loc.ID, &loc.Name, &loc.Country, &loc.Latitude, &loc.Longitude, &loc.AddedAt); err != nil {
			return nil, fmt.Errorf("scanning location row: %w", err)
		}
		locs = append(locs, loc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating location rows: %w", err)
	}
	return locs, nil
}

// CountLocations returns the number of tracked locations.
func (s *Store) CountLocations(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM locations`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting locations: %w", err)
	}
	return n, nil
}

// DeleteLocation removes a tracked location together with its current
// reading and forecast rows in a single transaction.
func (s *Store) DeleteLocation(ctx context.Context, id uuid.UUID) error {
	err := execInTx(ctx, s.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM forecast_days WHERE location_id = $1`, id); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM current_readings WHERE location_id = $1`, id); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `DELETE FROM locations WHERE id = $1`, id)
		return err
	})
	if err != nil {
		return fmt.Errorf("deleting location %s: %w", id, err)
	}
	return nil
}

// ---- current readings ----

// UpsertReading inserts or fully replaces the current reading for a
// location.
func (s *Store) UpsertReading(ctx context.Context, r weather.CurrentReading) error {
	const q = `
		INSERT INTO current_readings (
			location_id, city_name, country,
			temp_c, temp_f, feels_like_c, feels_like_f,
			condition, condition_icon, humidity,
			wind_kph, wind_mph, wind_dir,
			pressure_mb, visibility_km, uv,
			last_updated, latitude, longitude
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		ON CONFLICT (location_id) DO UPDATE
		SET city_name      = EXCLUDED.city_name,
		    country        = EXCLUDED.country,
		    temp_c         = EXCLUDED.temp_c,
		    temp_f         = EXCLUDED.temp_f,
		    feels_like_c   = EXCLUDED.feels_like_c,
		    feels_like_f   = EXCLUDED.feels_like_f,
		    condition      = EXCLUDED.condition,
		    condition_icon = EXCLUDED.condition_icon,
		    humidity       = EXCLUDED.humidity,
		    wind_kph       = EXCLUDED.wind_kph,
		    wind_mph       = EXCLUDED.wind_mph,
		    wind_dir       = EXCLUDED.wind_dir,
		    pressure_mb    = EXCLUDED.pressure_mb,
		    visibility_km  = EXCLUDED.visibility_km,
		    uv             = EXCLUDED.uv,
		    last_updated   = EXCLUDED.last_updated,
		    latitude       = EXCLUDED.latitude,
		    longitude      = EXCLUDED.longitude
	`

	_, err := s.db.Exec(ctx, q,
		r.LocationID, r.CityName, r.Country,
		r.TempC, r.TempF, r.FeelsLikeC, r.FeelsLikeF,
		r.Condition, r.ConditionIcon, r.Humidity,
		r.WindKph, r.WindMph, r.WindDir,
		r.PressureMb, r.VisibilityKm, r.UV,
		r.LastUpdated, r.Latitude, r.Longitude,
	)
	if err != nil {
		return fmt.Errorf("upserting reading for %s: %w", r.CityName, err)
	}
	return nil
}

const readingColumns = `
	location_id, city_name, country,
	temp_c, temp_f, feels_like_c, feels_like_f,
	condition, condition_icon, humidity,
	wind_kph, wind_mph, wind_dir,
	pressure_mb, visibility_km, uv,
	last_updated, latitude, longitude`

func scanReading(row pgx.Row) (*weather.CurrentReading, error) {
	var r weather.CurrentReading
	err := row.Scan(
		&r.LocationID, &r.CityName, &r.Country,
		&r.TempC, &r.TempF, &r.FeelsLikeC, &r.FeelsLikeF,
		&r.Condition, &r.ConditionIcon, &r.Humidity,
		&r.WindKph, &r.WindMph, &r.WindDir,
		&r.PressureMb, &r.VisibilityKm, &r.UV,
		&r.LastUpdated, &r.Latitude, &r.Longitude,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// GetReading retrieves the current reading for a location.
// Returns nil, nil when no reading exists.
func (s *Store) GetReading(ctx context.Context, locationID uuid.UUID) (*weather.CurrentReading, error) {
	const q = `SELECT ` + readingColumns + ` FROM current_readings WHERE location_id = $1`

	r, err := scanReading(s.db.QueryRow(ctx, q, locationID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying reading for %s: %w", locationID, err)
	}
	return r, nil
}

// ---- forecast days ----

// ReplaceForecast replaces the entire forecast set for a location with the
// given days, atomically. Stale days from a previous fetch never survive.
func (s *Store) ReplaceForecast(ctx context.Context, locationID uuid.UUID, days []weather.ForecastDay) error {
	err := execInTx(ctx, s.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM forecast_days WHERE location_id = $1`, locationID); err != nil {
			return err
		}

		const ins = `
			INSERT INTO forecast_days (
				location_id, date,
				max_temp_c, max_temp_f, min_temp_c, min_temp_f,
				condition, condition_icon,
				chance_of_rain, chance_of_snow, avg_humidity, uv
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		`
		for _, d := range days {
			_, err := tx.Exec(ctx, ins,
				locationID, d.Date,
				d.MaxTempC, d.MaxTempF, d.MinTempC, d.MinTempF,
				d.Condition, d.ConditionIcon,
				d.ChanceOfRain, d.ChanceOfSnow, d.AvgHumidity, d.UV,
			)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("replacing forecast for %s: %w", locationID, err)
	}
	return nil
}

// GetForecast returns all forecast days for a location, ordered by date
// ascending. An empty slice means no cached forecast.
func (s *Store) GetForecast(ctx context.Context, locationID uuid.UUID) ([]weather.ForecastDay, error) {
	const q = `
		SELECT location_id, date,
		       max_temp_c, max_temp_f, min_temp_c, min_temp_f,
		       condition, condition_icon,
		       chance_of_rain, chance_of_snow, avg_humidity, uv
		FROM forecast_days
		WHERE location_id = $1
		ORDER BY date ASC
	`

	rows, err := s.db.Query(ctx, q, locationID)
	if err != nil {
		return nil, fmt.Errorf("querying forecast for %s: %w", locationID, err)
	}
	defer rows.Close()

	var days []weather.ForecastDay
	for rows.Next() {
		var d weather.ForecastDay
		err := rows.Scan(
			&d.LocationID, &d.Date,
			&d.MaxTempC, &d.MaxTempF, &d.MinTempC, &d.MinTempF,
			&d.Condition, &d.ConditionIcon,
			&d.ChanceOfRain, &d.ChanceOfSnow, &d.AvgHumidity, &d.UV,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning forecast row: %w", err)
		}
		days = append(days, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating forecast rows: %w", err)
	}
	return days, nil
}
