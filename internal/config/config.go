// Package config loads application configuration from the environment,
// optionally seeded from a .env file.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the server needs to start.
type Config struct {
	// WeatherAPIKey authenticates against the upstream weather API.
	WeatherAPIKey string

	// WeatherAPIBaseURL overrides the upstream endpoint, mainly for tests.
	WeatherAPIBaseURL string

	// DBPath is the SQLite database file.
	DBPath string

	// RedisURL enables the read cache when non-empty.
	RedisURL string

	Port string

	// PollInterval controls how often the scheduler refreshes each location.
	PollInterval time.Duration

	// MergeWindow is the observation deduplication window.
	MergeWindow time.Duration

	// Retention drops records older than this age. Zero disables the purge job.
	Retention time.Duration

	// Locations the scheduler keeps fresh.
	Locations []string

	// MatchSubstring switches location history lookups to substring matching.
	MatchSubstring bool
}

// Load reads configuration from the environment with sensible defaults.
// A missing .env file is not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		WeatherAPIKey:     os.Getenv("WEATHER_API_KEY"),
		WeatherAPIBaseURL: os.Getenv("WEATHER_API_BASE_URL"),
		DBPath:            getenvDefault("DB_PATH", "weather.db"),
		RedisURL:          os.Getenv("REDIS_URL"),
		Port:              getenvDefault("PORT", "8080"),
		Locations:         splitList(os.Getenv("LOCATIONS")),
		MatchSubstring:    getenvBool("MATCH_SUBSTRING", false),
	}

	if cfg.WeatherAPIKey == "" {
		return nil, fmt.Errorf("WEATHER_API_KEY is required")
	}

	var err error
	if cfg.PollInterval, err = getenvDuration("POLL_INTERVAL", 15*time.Minute); err != nil {
		return nil, err
	}
	if cfg.MergeWindow, err = getenvDuration("MERGE_WINDOW", time.Hour); err != nil {
		return nil, err
	}
	if cfg.Retention, err = getenvDuration("RETENTION", 0); err != nil {
		return nil, err
	}

	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("POLL_INTERVAL must be positive")
	}
	if cfg.MergeWindow <= 0 {
		return nil, fmt.Errorf("MERGE_WINDOW must be positive")
	}
	if cfg.Retention < 0 {
		return nil, fmt.Errorf("RETENTION must not be negative")
	}

	return cfg, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes":
		return true
	case "0", "false", "no":
		return false
	default:
		return def
	}
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
