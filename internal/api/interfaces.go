package api

import (
	"context"
	"time"

	"github.com/nfrey/weathervault/internal/weather"
)

// ObservationStore defines the storage operations needed by handlers.
type ObservationStore interface {
	Upsert(ctx context.Context, obs *weather.Observation) (int64, bool, error)
	GetByLocation(ctx context.Context, name string, limit int) ([]weather.Record, error)
	GetLatestByLocation(ctx context.Context, name string) (*weather.Record, error)
	GetAllRecords(ctx context.Context, limit int) ([]weather.Record, error)
	GetAllLocations(ctx context.Context) ([]weather.LocationSummary, error)
	PurgeOlderThan(ctx context.Context, age time.Duration) (int64, error)
}

// ObservationCache defines the cache operations needed by handlers.
// A nil cache is valid and disables caching.
type ObservationCache interface {
	Get(ctx context.Context, location string) (*weather.Record, error)
	Set(ctx context.Context, location string, rec *weather.Record) error
	Delete(ctx context.Context, location string) error
}

// WeatherFetcher defines the upstream fetch needed by the refresh handler.
type WeatherFetcher interface {
	Fetch(ctx context.Context, location string) (*weather.Observation, error)
}
