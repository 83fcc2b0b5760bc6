package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/simpleweather/weathersync/internal/syncer"
	"github.com/simpleweather/weathersync/internal/weather"
)

// Handlers holds the dependencies for all HTTP handlers.
type Handlers struct {
	engine   SyncEngine
	settings SettingsStore
	validate *validator.Validate
	log      *slog.Logger
}

// NewHandlers constructs Handlers with all required dependencies.
func NewHandlers(engine SyncEngine, settings SettingsStore, log *slog.Logger) *Handlers {
	return &Handlers{
		engine:   engine,
		settings: settings,
		validate: validator.New(),
		log:      log,
	}
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// GetWeather handles GET /api/v1/weather/{city}?refresh=.
// refresh=true forces a remote fetch; otherwise the cached reading is
// served, falling through to a live fetch on a cache miss.
func (h *Handlers) GetWeather(w http.ResponseWriter, r *http.Request) {
	city := chi.URLParam(r, "city")
	refresh := r.URL.Query().Get("refresh") == "true"

	reading, err := h.engine.GetWeather(r.Context(), city, refresh)
	if err != nil {
		h.log.Error("get weather failed", "city", city, "err", err)
		writeError(w, http.StatusBadGateway, "failed to get weather for "+city)
		return
	}

	writeJSON(w, http.StatusOK, reading)
}

// GetWeatherByCoordinates handles GET /api/v1/weather?lat=&lon=.
// The fetched coordinates are recorded as the last-known location.
func (h *Handlers) GetWeatherByCoordinates(w http.ResponseWriter, r *http.Request) {
	lat, errLat := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lon, errLon := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if errLat != nil || errLon != nil {
		writeError(w, http.StatusBadRequest, "lat and lon must be valid numbers")
		return
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		writeError(w, http.StatusBadRequest, "lat/lon out of range")
		return
	}

	reading, err := h.engine.GetWeatherByCoordinates(r.Context(), lat, lon)
	if err != nil {
		h.log.Error("get weather by coordinates failed", "lat", lat, "lon", lon, "err", err)
		writeError(w, http.StatusBadGateway, "failed to get weather for coordinates")
		return
	}

	if err := h.settings.SetLastLocation(r.Context(), lat, lon); err != nil {
		h.log.Warn("recording last location failed", "err", err)
	}

	writeJSON(w, http.StatusOK, reading)
}

// GetForecast handles GET /api/v1/forecast/{city}.
// Serves the cached forecast; an unknown city yields an empty list.
func (h *Handlers) GetForecast(w http.ResponseWriter, r *http.Request) {
	city := chi.URLParam(r, "city")

	days, err := h.engine.GetForecast(r.Context(), city, false)
	if err != nil {
		h.log.Error("get forecast failed", "city", city, "err", err)
		writeError(w, http.StatusInternalServerError, "failed to get forecast for "+city)
		return
	}
	if days == nil {
		days = []weather.ForecastDay{}
	}

	writeJSON(w, http.StatusOK, days)
}

// ListCities handles GET /api/v1/cities.
func (h *Handlers) ListCities(w http.ResponseWriter, r *http.Request) {
	cities, err := h.engine.ListCities(r.Context())
	if err != nil {
		h.log.Error("list cities failed", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to list cities")
		return
	}
	if cities == nil {
		cities = []weather.TrackedLocation{}
	}

	writeJSON(w, http.StatusOK, cities)
}

// saveCityRequest is the POST /api/v1/cities body.
type saveCityRequest struct {
	Name    string  `json:"name" validate:"required"`
	Country string  `json:"country" validate:"required"`
	Lat     float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lon     float64 `json:"lon" validate:"gte=-180,lte=180"`
}

// SaveCity handles POST /api/v1/cities. Idempotent on (name, country).
func (h *Handlers) SaveCity(w http.ResponseWriter, r *http.Request) {
	var req saveCityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid city: "+err.Error())
		return
	}

	city, err := h.engine.SaveCity(r.Context(), req.Name, req.Country, req.Lat, req.Lon)
	if err != nil {
		h.log.Error("save city failed", "city", req.Name, "err", err)
		writeError(w, http.StatusInternalServerError, "failed to save city")
		return
	}

	writeJSON(w, http.StatusCreated, city)
}

// DeleteCity handles DELETE /api/v1/cities/{id}.
func (h *Handlers) DeleteCity(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid city id")
		return
	}

	if err := h.engine.DeleteCity(r.Context(), id); err != nil {
		h.log.Error("delete city failed", "id", id, "err", err)
		writeError(w, http.StatusInternalServerError, "failed to delete city")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RefreshCity handles POST /api/v1/cities/{id}/refresh.
func (h *Handlers) RefreshCity(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid city id")
		return
	}

	reading, err := h.engine.RefreshWeather(r.Context(), id)
	if err != nil {
		if errors.Is(err, syncer.ErrNotFound) {
			writeError(w, http.StatusNotFound, "city not found")
			return
		}
		h.log.Error("refresh city failed", "id", id, "err", err)
		writeError(w, http.StatusBadGateway, "failed to refresh city")
		return
	}

	writeJSON(w, http.StatusOK, reading)
}

// SyncAll handles POST /api/v1/sync: a manual best-effort refresh of every
// tracked city.
func (h *Handlers) SyncAll(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.SyncAllCities(r.Context()); err != nil {
		h.log.Error("manual sync failed", "err", err)
		writeError(w, http.StatusInternalServerError, "sync failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "synced"})
}

// GetSettings handles GET /api/v1/settings.
func (h *Handlers) GetSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.settings.Settings(r.Context())
	if err != nil {
		h.log.Error("read settings failed", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to read settings")
		return
	}

	writeJSON(w, http.StatusOK, s)
}

// updateSettingsRequest is the PUT /api/v1/settings body. Absent fields
// are left unchanged.
type updateSettingsRequest struct {
	TemperatureUnit      *string `json:"temperature_unit" validate:"omitempty,oneof=celsius fahrenheit"`
	WindSpeedUnit        *string `json:"wind_speed_unit" validate:"omitempty,oneof=kph mph"`
	AutoUpdateEnabled    *bool   `json:"auto_update_enabled"`
	UpdateIntervalHours  *int    `json:"update_interval_hours" validate:"omitempty,gte=1,lte=24"`
	NotificationsEnabled *bool   `json:"notifications_enabled"`
}

// UpdateSettings handles PUT /api/v1/settings.
func (h *Handlers) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req updateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid settings: "+err.Error())
		return
	}

	ctx := r.Context()
	if err := h.applySettings(ctx, req); err != nil {
		h.log.Error("update settings failed", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to update settings")
		return
	}

	s, err := h.settings.Settings(ctx)
	if err != nil {
		h.log.Error("read settings after update failed", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to read settings")
		return
	}

	writeJSON(w, http.StatusOK, s)
}

func (h *Handlers) applySettings(ctx context.Context, req updateSettingsRequest) error {
	if req.TemperatureUnit != nil {
		if err := h.settings.SetTemperatureUnit(ctx, *req.TemperatureUnit); err != nil {
			return err
		}
	}
	if req.WindSpeedUnit != nil {
		if err := h.settings.SetWindSpeedUnit(ctx, *req.WindSpeedUnit); err != nil {
			return err
		}
	}
	if req.AutoUpdateEnabled != nil {
		if err := h.settings.SetAutoUpdate(ctx, *req.AutoUpdateEnabled); err != nil {
			return err
		}
	}
	if req.UpdateIntervalHours != nil {
		if err := h.settings.SetUpdateInterval(ctx, *req.UpdateIntervalHours); err != nil {
			return err
		}
	}
	if req.NotificationsEnabled != nil {
		if err := h.settings.SetNotifications(ctx, *req.NotificationsEnabled); err != nil {
			return err
		}
	}
	return nil
}

// dbPinger and redisPinger are the connectivity checks used by the health
// endpoint.
type dbPinger interface {
	Ping(ctx context.Context) error
}

type redisPinger interface {
	Ping(ctx context.Context) error
}

// HealthHandlerFunc returns an http.HandlerFunc that checks db and redis
// connectivity; 200 when both respond, 503 otherwise.
func HealthHandlerFunc(db dbPinger, redis redisPinger, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		status := http.StatusOK
		dbStatus := "ok"
		redisStatus := "ok"

		if err := db.Ping(ctx); err != nil {
			log.Error("health check: db ping failed", "err", err)
			dbStatus = "error"
			status = http.StatusServiceUnavailable
		}

		if err := redis.Ping(ctx); err != nil {
			log.Error("health check: redis ping failed", "err", err)
			redisStatus = "error"
			status = http.StatusServiceUnavailable
		}

		overall := "ok"
		if status != http.StatusOK {
			overall = "degraded"
		}

		writeJSON(w, status, map[string]string{
			"status": overall,
			"db":     dbStatus,
			"redis":  redisStatus,
		})
	}
}
