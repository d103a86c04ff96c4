// Package scheduler keeps the configured locations fresh by polling the
// upstream weather API on an interval, and optionally enforces a
// retention policy on stored records.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
	"golang.org/x/sync/errgroup"

	"github.com/nfrey/weathervault/internal/weather"
)

// maxConcurrentFetches bounds upstream fan-out per poll cycle.
const maxConcurrentFetches = 4

const fetchTimeout = 30 * time.Second

// Fetcher retrieves a fresh observation for a location.
type Fetcher interface {
	Fetch(ctx context.Context, location string) (*weather.Observation, error)
}

// Store persists observations and enforces retention.
type Store interface {
	Upsert(ctx context.Context, obs *weather.Observation) (int64, bool, error)
	PurgeOlderThan(ctx context.Context, age time.Duration) (int64, error)
}

// Invalidator drops stale cache entries after a refresh. May be nil.
type Invalidator interface {
	Delete(ctx context.Context, location string) error
}

// Scheduler runs the periodic fetch and purge jobs.
type Scheduler struct {
	scheduler *gocron.Scheduler
	fetcher   Fetcher
	store     Store
	cache     Invalidator
	locations []string
	interval  time.Duration
	retention time.Duration
	log       *slog.Logger
}

// New creates a Scheduler. retention of zero disables the purge job, and
// cache may be nil when caching is disabled.
func New(fetcher Fetcher, store Store, cache Invalidator, locations []string, interval, retention time.Duration, log *slog.Logger) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		fetcher:   fetcher,
		store:     store,
		cache:     cache,
		locations: locations,
		interval:  interval,
		retention: retention,
		log:       log,
	}
}

// Start registers the jobs and starts the scheduler in the background.
func (s *Scheduler) Start() error {
	if len(s.locations) > 0 {
		if _, err := s.scheduler.Every(s.interval).Do(s.pollOnce); err != nil {
			return err
		}
		s.log.Info("poll job scheduled", "locations", len(s.locations), "interval", s.interval)
	} else {
		s.log.Info("no locations configured; poll job disabled")
	}

	if s.retention > 0 {
		if _, err := s.scheduler.Every(24 * time.Hour).Do(s.purgeExpired); err != nil {
			return err
		}
		s.log.Info("retention job scheduled", "max_age", s.retention)
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop halts the scheduler. Jobs already running are allowed to finish.
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

func (s *Scheduler) pollOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()
	s.RefreshAll(ctx)
}

// RefreshAll fetches and stores every configured location concurrently.
// Individual failures are logged and do not abort the remaining locations.
func (s *Scheduler) RefreshAll(ctx context.Context) {
	s.log.Info("refreshing locations", "count", len(s.locations))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentFetches)

	for _, location := range s.locations {
		location := location
		g.Go(func() error {
			if err := s.refreshOne(ctx, location); err != nil {
				s.log.Error("refresh failed", "location", location, "err", err)
			}
			return nil
		})
	}

	_ = g.Wait()
	s.log.Info("refresh cycle complete")
}

func (s *Scheduler) refreshOne(ctx context.Context, location string) error {
	obs, err := s.fetcher.Fetch(ctx, location)
	if err != nil {
		return err
	}

	id, inserted, err := s.store.Upsert(ctx, obs)
	if err != nil {
		return err
	}
	s.log.Debug("observation stored", "location", obs.LocationName, "id", id, "inserted", inserted)

	if s.cache != nil {
		if err := s.cache.Delete(ctx, obs.LocationName); err != nil {
			s.log.Warn("cache invalidation failed", "location", obs.LocationName, "err", err)
		}
	}
	return nil
}

func (s *Scheduler) purgeExpired() {
	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	deleted, err := s.store.PurgeOlderThan(ctx, s.retention)
	if err != nil {
		s.log.Error("retention purge failed", "err", err)
		return
	}
	if deleted > 0 {
		s.log.Info("retention purge complete", "deleted", deleted)
	}
}
