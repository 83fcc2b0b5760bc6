package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
)

// NewRouter builds the chi router. The health endpoint is unauthenticated;
// everything else requires bearer auth. Rate limiting is applied globally:
// 60 requests per minute per IP.
func NewRouter(handlers *Handlers, token string, db dbPinger, redisClient redisPinger, log *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(httprate.LimitByIP(60, time.Minute))

	r.Get("/api/v1/health", HealthHandlerFunc(db, redisClient, log))

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(token))

		r.Get("/api/v1/weather", handlers.GetWeatherByCoordinates)
		r.Get("/api/v1/weather/{city}", handlers.GetWeather)
		r.Get("/api/v1/forecast/{city}", handlers.GetForecast)

		r.Get("/api/v1/cities", handlers.ListCities)
		r.Post("/api/v1/cities", handlers.SaveCity)
		r.Delete("/api/v1/cities/{id}", handlers.DeleteCity)
		r.Post("/api/v1/cities/{id}/refresh", handlers.RefreshCity)

		r.Post("/api/v1/sync", handlers.SyncAll)

		r.Get("/api/v1/settings", handlers.GetSettings)
		r.Put("/api/v1/settings", handlers.UpdateSettings)
	})

	return r
}

// Ensure chi.Mux implements http.Handler.
var _ http.Handler = (*chi.Mux)(nil)
