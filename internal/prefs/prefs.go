// Package prefs stores the user-facing settings bag in redis.
//
// Recognized options, with defaults: temperature unit (celsius), wind-speed
// unit (kph), auto-update enabled (true), update interval in hours (3),
// notifications enabled (true), last-known coordinates (0, 0).
package prefs

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/simpleweather/weathersync/internal/weather"
)

const settingsKey = "weathersync:settings"

const (
	fieldTemperatureUnit = "temperature_unit"
	fieldWindSpeedUnit   = "wind_speed_unit"
	fieldAutoUpdate      = "auto_update"
	fieldUpdateInterval  = "update_interval"
	fieldNotifications   = "notifications_enabled"
	fieldLastLat         = "last_location_lat"
	fieldLastLon         = "last_location_lon"
)

const (
	defaultUpdateIntervalHours = 3
)

// Connect parses redisURL, creates a client, and verifies connectivity
// with a ping.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	return client, nil
}

// Prefs wraps a redis client and provides typed access to the settings
// hash. Missing fields read as their defaults.
type Prefs struct {
	client *redis.Client
}

// NewPrefs constructs a Prefs over the given client.
func NewPrefs(client *redis.Client) *Prefs {
	return &Prefs{client: client}
}

// Settings reads the whole settings bag, applying defaults for any field
// that has never been written.
func (p *Prefs) Settings(ctx context.Context) (weather.Settings, error) {
	fields, err := p.client.HGetAll(ctx, settingsKey).Result()
	if err != nil {
		return weather.Settings{}, fmt.Errorf("reading settings: %w", err)
	}

	s := weather.Settings{
		TemperatureUnit:      weather.UnitCelsius,
		WindSpeedUnit:        weather.UnitKph,
		AutoUpdateEnabled:    true,
		UpdateIntervalHours:  defaultUpdateIntervalHours,
		NotificationsEnabled: true,
	}

	if v, ok := fields[fieldTemperatureUnit]; ok {
		s.TemperatureUnit = v
	}
	if v, ok := fields[fieldWindSpeedUnit]; ok {
		s.WindSpeedUnit = v
	}
	if v, ok := fields[fieldAutoUpdate]; ok {
		s.AutoUpdateEnabled = v == "true"
	}
	if v, ok := fields[fieldUpdateInterval]; ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			s.UpdateIntervalHours = n
		}
	}
	if v, ok := fields[fieldNotifications]; ok {
		s.NotificationsEnabled = v == "true"
	}
	if v, ok := fields[fieldLastLat]; ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			s.LastLatitude = f
		}
	}
	if v, ok := fields[fieldLastLon]; ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			s.LastLongitude = f
		}
	}

	return s, nil
}

// SetTemperatureUnit stores the temperature unit (celsius or fahrenheit).
func (p *Prefs) SetTemperatureUnit(ctx context.Context, unit string) error {
	if unit != weather.UnitCelsius && unit != weather.UnitFahrenheit {
		return fmt.Errorf("unrecognized temperature unit %q", unit)
	}
	return p.set(ctx, fieldTemperatureUnit, unit)
}

// SetWindSpeedUnit stores the wind-speed unit (kph or mph).
func (p *Prefs) SetWindSpeedUnit(ctx context.Context, unit string) error {
	if unit != weather.UnitKph && unit != weather.UnitMph {
		return fmt.Errorf("unrecognized wind speed unit %q", unit)
	}
	return p.set(ctx, fieldWindSpeedUnit, unit)
}

// SetAutoUpdate stores the auto-update flag.
func (p *Prefs) SetAutoUpdate(ctx context.Context, enabled bool) error {
	return p.set(ctx, fieldAutoUpdate, strconv.FormatBool(enabled))
}

// SetUpdateInterval stores the sync interval in whole hours.
func (p *Prefs) SetUpdateInterval(ctx context.Context, hours int) error {
	if hours <= 0 {
		return fmt.Errorf("update interval must be positive, got %d", hours)
	}
	return p.set(ctx, fieldUpdateInterval, strconv.Itoa(hours))
}

// SetNotifications stores the notifications flag.
func (p *Prefs) SetNotifications(ctx context.Context, enabled bool) error {
	return p.set(ctx, fieldNotifications, strconv.FormatBool(enabled))
}

// SetLastLocation stores the last-known coordinates.
func (p *Prefs) SetLastLocation(ctx context.Context, lat, lon float64) error {
	err := p.client.HSet(ctx, settingsKey,
		fieldLastLat, strconv.FormatFloat(lat, 'f', -1, 64),
		fieldLastLon, strconv.FormatFloat(lon, 'f', -1, 64),
	).Err()
	if err != nil {
		return fmt.Errorf("writing last location: %w", err)
	}
	return nil
}

// AutoUpdateEnabled reads the auto-update flag.
func (p *Prefs) AutoUpdateEnabled(ctx context.Context) (bool, error) {
	s, err := p.Settings(ctx)
	if err != nil {
		return false, err
	}
	return s.AutoUpdateEnabled, nil
}

// NotificationsEnabled reads the notifications flag.
func (p *Prefs) NotificationsEnabled(ctx context.Context) (bool, error) {
	s, err := p.Settings(ctx)
	if err != nil {
		return false, err
	}
	return s.NotificationsEnabled, nil
}

// UpdateInterval reads the sync interval as a duration.
func (p *Prefs) UpdateInterval(ctx context.Context) (time.Duration, error) {
	s, err := p.Settings(ctx)
	if err != nil {
		return 0, err
	}
	return time.Duration(s.UpdateIntervalHours) * time.Hour, nil
}

// Clear removes every stored setting, restoring defaults.
func (p *Prefs) Clear(ctx context.Context) error {
	if err := p.client.Del(ctx, settingsKey).Err(); err != nil {
		return fmt.Errorf("clearing settings: %w", err)
	}
	return nil
}

func (p *Prefs) set(ctx context.Context, field, value string) error {
	if err := p.client.HSet(ctx, settingsKey, field, value).Err(); err != nil {
		return fmt.Errorf("writing setting %s: %w", field, err)
	}
	return nil
}
