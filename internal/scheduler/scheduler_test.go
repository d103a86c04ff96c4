package scheduler_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nfrey/weathervault/internal/scheduler"
	"github.com/nfrey/weathervault/internal/weather"
)

type mockFetcher struct {
	fetchFn func(ctx context.Context, location string) (*weather.Observation, error)
}

func (m *mockFetcher) Fetch(ctx context.Context, location string) (*weather.Observation, error) {
	return m.fetchFn(ctx, location)
}

type mockStore struct {
	mu       sync.Mutex
	upserted []string
	purgedAt []time.Duration
	upsertFn func(ctx context.Context, obs *weather.Observation) (int64, bool, error)
}

func (m *mockStore) Upsert(ctx context.Context, obs *weather.Observation) (int64, bool, error) {
	m.mu.Lock()
	m.upserted = append(m.upserted, obs.LocationName)
	m.mu.Unlock()
	if m.upsertFn != nil {
		return m.upsertFn(ctx, obs)
	}
	return 1, true, nil
}

func (m *mockStore) PurgeOlderThan(_ context.Context, age time.Duration) (int64, error) {
	m.mu.Lock()
	m.purgedAt = append(m.purgedAt, age)
	m.mu.Unlock()
	return 2, nil
}

type mockInvalidator struct {
	mu      sync.Mutex
	deleted []string
}

func (m *mockInvalidator) Delete(_ context.Context, location string) error {
	m.mu.Lock()
	m.deleted = append(m.deleted, location)
	m.mu.Unlock()
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func obsFor(location string) *weather.Observation {
	return &weather.Observation{
		LocationName:  location,
		ConditionText: "Clear",
		ObservedAt:    time.Now().UTC(),
	}
}

func TestRefreshAll_StoresEveryLocation(t *testing.T) {
	fetcher := &mockFetcher{
		fetchFn: func(_ context.Context, location string) (*weather.Observation, error) {
			return obsFor(location), nil
		},
	}
	store := &mockStore{}
	cache := &mockInvalidator{}

	s := scheduler.New(fetcher, store, cache, []string{"London", "Paris", "Tokyo"}, time.Minute, 0, testLogger())
	s.RefreshAll(context.Background())

	assert.ElementsMatch(t, []string{"London", "Paris", "Tokyo"}, store.upserted)
	assert.ElementsMatch(t, []string{"London", "Paris", "Tokyo"}, cache.deleted)
}

func TestRefreshAll_OneFailureDoesNotAbortOthers(t *testing.T) {
	fetcher := &mockFetcher{
		fetchFn: func(_ context.Context, location string) (*weather.Observation, error) {
			if location == "Paris" {
				return nil, fmt.Errorf("upstream down")
			}
			return obsFor(location), nil
		},
	}
	store := &mockStore{}

	s := scheduler.New(fetcher, store, nil, []string{"London", "Paris", "Tokyo"}, time.Minute, 0, testLogger())
	s.RefreshAll(context.Background())

	assert.ElementsMatch(t, []string{"London", "Tokyo"}, store.upserted)
}

func TestRefreshAll_NilCacheIsFine(t *testing.T) {
	fetcher := &mockFetcher{
		fetchFn: func(_ context.Context, location string) (*weather.Observation, error) {
			return obsFor(location), nil
		},
	}
	store := &mockStore{}

	s := scheduler.New(fetcher, store, nil, []string{"London"}, time.Minute, 0, testLogger())
	s.RefreshAll(context.Background())

	assert.Equal(t, []string{"London"}, store.upserted)
}

func TestStartStop_NoLocationsNoRetention(t *testing.T) {
	fetcher := &mockFetcher{
		fetchFn: func(_ context.Context, location string) (*weather.Observation, error) {
			return obsFor(location), nil
		},
	}
	store := &mockStore{}

	s := scheduler.New(fetcher, store, nil, nil, time.Minute, 0, testLogger())
	assert.NoError(t, s.Start())
	s.Stop()

	assert.Empty(t, store.upserted)
	assert.Empty(t, store.purgedAt)
}
