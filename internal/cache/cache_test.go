package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfrey/weathervault/internal/cache"
	"github.com/nfrey/weathervault/internal/weather"
)

func newTestCache(t *testing.T) (*cache.Cache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return cache.NewCache(client), mr
}

func sampleRecord() *weather.Record {
	return &weather.Record{
		ID: 1,
		Observation: weather.Observation{
			LocationName:  "London",
			Country:       "United Kingdom",
			ObservedAt:    time.Unix(1701963000, 0).UTC(),
			TemperatureC:  8.0,
			TemperatureF:  46.4,
			ConditionText: "Partly cloudy",
		},
		CreatedAt: time.Unix(1701963100, 0).UTC(),
		UpdatedAt: time.Unix(1701963100, 0).UTC(),
	}
}

func TestCache_SetAndGet(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "London", sampleRecord()))

	got, err := c.Get(ctx, "London")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(1), got.ID)
	assert.Equal(t, 8.0, got.TemperatureC)
	assert.Equal(t, "Partly cloudy", got.ConditionText)
}

func TestCache_Get_Miss(t *testing.T) {
	c, _ := newTestCache(t)

	got, err := c.Get(context.Background(), "nonexistent")
	require.NoError(t, err)
	assert.Nil(t, got, "cache miss should return nil, nil")
}

func TestCache_LocationKeyIsNormalized(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "  LONDON ", sampleRecord()))

	got, err := c.Get(ctx, "london")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "London", got.LocationName)
}

func TestCache_Delete(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "London", sampleRecord()))
	require.NoError(t, c.Delete(ctx, "London"))

	got, err := c.Get(ctx, "London")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCache_EntriesExpire(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "London", sampleRecord()))

	mr.FastForward(11 * time.Minute)

	got, err := c.Get(ctx, "London")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCache_SetNilIsNoop(t *testing.T) {
	c, _ := newTestCache(t)

	require.NoError(t, c.Set(context.Background(), "London", nil))

	got, err := c.Get(context.Background(), "London")
	require.NoError(t, err)
	assert.Nil(t, got)
}
