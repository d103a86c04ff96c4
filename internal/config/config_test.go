package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfrey/weathervault/internal/config"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("WEATHER_API_KEY", "test-key")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "test-key", cfg.WeatherAPIKey)
	assert.Equal(t, "weather.db", cfg.DBPath)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 15*time.Minute, cfg.PollInterval)
	assert.Equal(t, time.Hour, cfg.MergeWindow)
	assert.Equal(t, time.Duration(0), cfg.Retention)
	assert.Empty(t, cfg.Locations)
	assert.False(t, cfg.MatchSubstring)
}

func TestLoad_MissingAPIKey(t *testing.T) {
	t.Setenv("WEATHER_API_KEY", "")

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WEATHER_API_KEY")
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("DB_PATH", "/tmp/wv.db")
	t.Setenv("PORT", "9090")
	t.Setenv("POLL_INTERVAL", "5m")
	t.Setenv("MERGE_WINDOW", "30m")
	t.Setenv("RETENTION", "720h")
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	t.Setenv("MATCH_SUBSTRING", "true")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/wv.db", cfg.DBPath)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 5*time.Minute, cfg.PollInterval)
	assert.Equal(t, 30*time.Minute, cfg.MergeWindow)
	assert.Equal(t, 720*time.Hour, cfg.Retention)
	assert.Equal(t, "redis://localhost:6379", cfg.RedisURL)
	assert.True(t, cfg.MatchSubstring)
}

func TestLoad_LocationsList(t *testing.T) {
	setRequired(t)
	t.Setenv("LOCATIONS", "London, Paris ,,Tokyo")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"London", "Paris", "Tokyo"}, cfg.Locations)
}

func TestLoad_InvalidDuration(t *testing.T) {
	setRequired(t)
	t.Setenv("POLL_INTERVAL", "often")

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "POLL_INTERVAL")
}

func TestLoad_NonPositiveInterval(t *testing.T) {
	setRequired(t)
	t.Setenv("MERGE_WINDOW", "-1h")

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MERGE_WINDOW")
}
