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

	"github.com/nfrey/weathervault/internal/storage"
	"github.com/nfrey/weathervault/internal/weather"
)

const (
	defaultHistoryLimit = 10
	defaultRecordsLimit = 100
	maxLimit            = 1000
)

// Handlers holds the dependencies for all HTTP handlers.
type Handlers struct {
	store   ObservationStore
	cache   ObservationCache
	fetcher WeatherFetcher
	log     *slog.Logger
}

// NewHandlers constructs Handlers. cache may be nil to disable caching.
func NewHandlers(store ObservationStore, cache ObservationCache, fetcher WeatherFetcher, log *slog.Logger) *Handlers {
	return &Handlers{
		store:   store,
		cache:   cache,
		fetcher: fetcher,
		log:     log,
	}
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// parseLimit reads a limit query parameter, clamped to [1, maxLimit].
func parseLimit(r *http.Request, def int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return def
	}
	if n > maxLimit {
		return maxLimit
	}
	return n
}

// GetLatest handles GET /api/v1/weather/{location}.
// Cache hit → return. DB hit → cache + return. Neither → 404.
func (h *Handlers) GetLatest(w http.ResponseWriter, r *http.Request) {
	location := chi.URLParam(r, "location")

	if h.cache != nil {
		cached, err := h.cache.Get(r.Context(), location)
		if err != nil {
			h.log.Error("cache get failed", "location", location, "err", err)
		}
		if cached != nil {
			writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	rec, err := h.store.GetLatestByLocation(r.Context(), location)
	if err != nil {
		h.log.Error("latest lookup failed", "location", location, "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if rec == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no weather data for location"})
		return
	}

	if h.cache != nil {
		if err := h.cache.Set(r.Context(), location, rec); err != nil {
			h.log.Warn("cache set failed after db hit", "location", location, "err", err)
		}
	}

	writeJSON(w, http.StatusOK, rec)
}

// GetHistory handles GET /api/v1/weather/{location}/history.
// An unknown location yields an empty list, not an error.
func (h *Handlers) GetHistory(w http.ResponseWriter, r *http.Request) {
	location := chi.URLParam(r, "location")
	limit := parseLimit(r, defaultHistoryLimit)

	recs, err := h.store.GetByLocation(r.Context(), location, limit)
	if err != nil {
		h.log.Error("history lookup failed", "location", location, "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if recs == nil {
		recs = []weather.Record{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"location": location,
		"records":  recs,
	})
}

// ListLocations handles GET /api/v1/weather/locations.
func (h *Handlers) ListLocations(w http.ResponseWriter, r *http.Request) {
	locs, err := h.store.GetAllLocations(r.Context())
	if err != nil {
		h.log.Error("locations lookup failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if locs == nil {
		locs = []weather.LocationSummary{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"locations": locs})
}

// ListRecords handles GET /api/v1/weather/records.
func (h *Handlers) ListRecords(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, defaultRecordsLimit)

	recs, err := h.store.GetAllRecords(r.Context(), limit)
	if err != nil {
		h.log.Error("records lookup failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if recs == nil {
		recs = []weather.Record{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"records": recs})
}

// Refresh handles POST /api/v1/weather/{location}/refresh.
// Fetches a fresh observation, upserts it, and recaches the stored record.
func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	location := chi.URLParam(r, "location")

	obs, err := h.fetcher.Fetch(r.Context(), location)
	if err != nil {
		h.log.Error("weather fetch failed", "location", location, "err", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "failed to fetch weather data"})
		return
	}

	id, inserted, err := h.store.Upsert(r.Context(), obs)
	if err != nil {
		var verr *storage.ValidationError
		if errors.As(err, &verr) {
			h.log.Warn("rejected malformed observation", "location", location, "field", verr.Field)
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": verr.Error()})
			return
		}
		h.log.Error("upsert failed", "location", location, "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to store weather data"})
		return
	}

	rec, err := h.store.GetLatestByLocation(r.Context(), obs.LocationName)
	if err != nil || rec == nil {
		h.log.Error("readback after upsert failed", "location", location, "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to read stored weather data"})
		return
	}

	if h.cache != nil {
		// The API may canonicalize the location name; invalidate both keys.
		if err := h.cache.Delete(r.Context(), location); err != nil {
			h.log.Warn("cache delete failed", "location", location, "err", err)
		}
		if err := h.cache.Set(r.Context(), rec.LocationName, rec); err != nil {
			h.log.Warn("cache set failed after refresh", "location", location, "err", err)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"record":   rec,
		"id":       id,
		"inserted": inserted,
	})
}

// PurgeRecords handles DELETE /api/v1/weather/records.
// The older_than query parameter is a Go duration, e.g. 720h.
func (h *Handlers) PurgeRecords(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("older_than")
	if raw == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "older_than query parameter is required"})
		return
	}
	age, err := time.ParseDuration(raw)
	if err != nil || age <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "older_than must be a positive duration"})
		return
	}

	deleted, err := h.store.PurgeOlderThan(r.Context(), age)
	if err != nil {
		h.log.Error("purge failed", "older_than", raw, "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to purge records"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"deleted": deleted})
}

// Pinger reports connectivity of a backing service.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandlerFunc returns an http.HandlerFunc that checks storage and
// cache connectivity. cachePinger may be nil when the cache is disabled.
func HealthHandlerFunc(db, cachePinger Pinger, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		status := http.StatusOK
		dbStatus := "ok"
		cacheStatus := "disabled"

		if err := db.Ping(ctx); err != nil {
			log.Error("health check: db ping failed", "err", err)
			dbStatus = "error"
			status = http.StatusServiceUnavailable
		}

		if cachePinger != nil {
			cacheStatus = "ok"
			if err := cachePinger.Ping(ctx); err != nil {
				log.Error("health check: cache ping failed", "err", err)
				cacheStatus = "error"
				status = http.StatusServiceUnavailable
			}
		}

		overall := "ok"
		if status != http.StatusOK {
			overall = "degraded"
		}

		writeJSON(w, status, map[string]string{
			"status": overall,
			"db":     dbStatus,
			"cache":  cacheStatus,
		})
	}
}
