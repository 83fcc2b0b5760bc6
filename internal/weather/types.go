package weather

import (
	"time"

	"github.com/google/uuid"
)

// TrackedLocation is a user-saved place for which weather is monitored.
// Locations are unique by (Name, Country).
type TrackedLocation struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Country   string    `json:"country"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	AddedAt   time.Time `json:"added_at"`
}

// CurrentReading is the latest known weather snapshot for a location.
// There is at most one reading per location; a successful fetch fully
// overwrites the previous one.
type CurrentReading struct {
	LocationID    uuid.UUID `json:"location_id"`
	CityName      string    `json:"city_name"`
	Country       string    `json:"country"`
	TempC         float64   `json:"temp_c"`
	TempF         float64   `json:"temp_f"`
	FeelsLikeC    float64   `json:"feels_like_c"`
	FeelsLikeF    float64   `json:"feels_like_f"`
	Condition     string    `json:"condition"`
	ConditionIcon string    `json:"condition_icon"`
	Humidity      int       `json:"humidity"`
	WindKph       float64   `json:"wind_kph"`
	WindMph       float64   `json:"wind_mph"`
	WindDir       string    `json:"wind_dir"`
	PressureMb    float64   `json:"pressure_mb"`
	VisibilityKm  float64   `json:"visibility_km"`
	UV            float64   `json:"uv"`
	LastUpdated   int64     `json:"last_updated"`
	Latitude      float64   `json:"latitude"`
	Longitude     float64   `json:"longitude"`
}

// ForecastDay is one day's forecast summary for a location.
// Days are keyed by (LocationID, Date); Date uses the upstream
// "2006-01-02" format.
type ForecastDay struct {
	LocationID    uuid.UUID `json:"location_id"`
	Date          string    `json:"date"`
	MaxTempC      float64   `json:"max_temp_c"`
	MaxTempF      float64   `json:"max_temp_f"`
	MinTempC      float64   `json:"min_temp_c"`
	MinTempF      float64   `json:"min_temp_f"`
	Condition     string    `json:"condition"`
	ConditionIcon string    `json:"condition_icon"`
	ChanceOfRain  int       `json:"chance_of_rain"`
	ChanceOfSnow  int       `json:"chance_of_snow"`
	AvgHumidity   int       `json:"avg_humidity"`
	UV            float64   `json:"uv"`
}

// Settings is the persisted settings bag.
type Settings struct {
	TemperatureUnit      string  `json:"temperature_unit"`
	WindSpeedUnit        string  `json:"wind_speed_unit"`
	AutoUpdateEnabled    bool    `json:"auto_update_enabled"`
	UpdateIntervalHours  int     `json:"update_interval_hours"`
	NotificationsEnabled bool    `json:"notifications_enabled"`
	LastLatitude         float64 `json:"last_latitude"`
	LastLongitude        float64 `json:"last_longitude"`
}

// Recognized unit values for Settings.
const (
	UnitCelsius    = "celsius"
	UnitFahrenheit = "fahrenheit"
	UnitKph        = "kph"
	UnitMph        = "mph"
)
