package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nfrey/weathervault/internal/weather"
)

const defaultTTL = 10 * time.Minute

// Cache fronts the latest stored record per location. It is an optimization
// for the dashboard's hot path only; every miss or failure falls through to
// the database.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache constructs a Cache with a 10-minute TTL.
func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client, ttl: defaultTTL}
}

// key returns the Redis key for the given location name.
func key(location string) string {
	return "observation:" + strings.ToLower(strings.TrimSpace(location))
}

// Get retrieves the cached latest record for a location.
// Returns nil, nil on a cache miss (not an error).
func (c *Cache) Get(ctx context.Context, location string) (*weather.Record, error) {
	val, err := c.client.Get(ctx, key(location)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("cache get for %s: %w", location, err)
	}

	var rec weather.Record
	if err := json.Unmarshal([]byte(val), &rec); err != nil {
		return nil, fmt.Errorf("unmarshaling cached record for %s: %w", location, err)
	}

	return &rec, nil
}

// Set stores the latest record for a location with the configured TTL.
func (c *Cache) Set(ctx context.Context, location string, rec *weather.Record) error {
	if rec == nil {
		return nil
	}

	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling record for %s: %w", location, err)
	}

	if err := c.client.Set(ctx, key(location), b, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set for %s: %w", location, err)
	}

	return nil
}

// Delete removes the cached entry for the given location.
func (c *Cache) Delete(ctx context.Context, location string) error {
	if err := c.client.Del(ctx, key(location)).Err(); err != nil {
		return fmt.Errorf("cache delete for %s: %w", location, err)
	}
	return nil
}
