package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
)

// NewRouter builds the chi router. Rate limiting is applied globally:
// 60 requests per minute per IP. cachePinger may be nil.
func NewRouter(handlers *Handlers, db, cachePinger Pinger, log *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(httprate.LimitByIP(60, time.Minute))

	r.Get("/api/v1/health", HealthHandlerFunc(db, cachePinger, log))

	r.Route("/api/v1/weather", func(r chi.Router) {
		r.Get("/locations", handlers.ListLocations)
		r.Get("/records", handlers.ListRecords)
		r.Delete("/records", handlers.PurgeRecords)
		r.Get("/{location}", handlers.GetLatest)
		r.Get("/{location}/history", handlers.GetHistory)
		r.Post("/{location}/refresh", handlers.Refresh)
	})

	return r
}

// Ensure chi.Mux implements http.Handler.
var _ http.Handler = (*chi.Mux)(nil)
