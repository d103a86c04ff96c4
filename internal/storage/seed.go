package storage

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/nfrey/weathervault/internal/weather"
)

var (
	seedConditions = []string{"Sunny", "Partly cloudy", "Cloudy", "Light rain", "Overcast"}
	seedDirections = []string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}
)

// SeedDemoHistory writes daysBack days of randomized historical records for
// a location, one per day, via direct inserts with synthesized timestamps.
// It bypasses the merge window on purpose and must never share a code path
// with Upsert. Returns the created record ids, oldest first.
func (r *Repository) SeedDemoHistory(ctx context.Context, locationName string, daysBack int) ([]int64, error) {
	const baseTemp = 20.0

	ids := make([]int64, 0, daysBack)
	now := time.Now().UTC()

	for i := 0; i < daysBack; i++ {
		ts := now.AddDate(0, 0, -(daysBack - i)).Add(-time.Duration(rand.Intn(24)) * time.Hour)

		tempC := baseTemp + rand.Float64()*10 - 5
		feelsC := tempC + rand.Float64()*4 - 2
		windKph := 15 + rand.Float64()*10 - 5
		if windKph < 0 {
			windKph = 0
		}
		pressureMb := 1013 + rand.Float64()*40 - 20
		visKm := 8 + rand.Float64()*7

		obs := &weather.Observation{
			LocationName:    locationName,
			Region:          "Demo Region",
			Country:         "Demo Country",
			Latitude:        51.5 + rand.Float64()*0.2 - 0.1,
			Longitude:       -0.1 + rand.Float64()*0.2 - 0.1,
			LocalTime:       ts.Format("2006-01-02 15:04"),
			ObservedAt:      ts,
			TemperatureC:    tempC,
			TemperatureF:    tempC*9/5 + 32,
			FeelsLikeC:      feelsC,
			FeelsLikeF:      feelsC*9/5 + 32,
			ConditionText:   seedConditions[rand.Intn(len(seedConditions))],
			ConditionIcon:   "//cdn.weatherapi.com/weather/64x64/day/116.png",
			Humidity:        min(90, max(30, 60+rand.Intn(21)-10)),
			WindSpeedKph:    windKph,
			WindSpeedMph:    windKph * kphToMph,
			WindDirection:   seedDirections[rand.Intn(len(seedDirections))],
			PressureMb:      pressureMb,
			PressureIn:      pressureMb * mbToInHg,
			VisibilityKm:    visKm,
			VisibilityMiles: visKm * kmToMiles,
			UVIndex:         rand.Float64() * 8,
		}

		id, err := r.InsertAt(ctx, obs, ts)
		if err != nil {
			return ids, fmt.Errorf("seeding day %d for %s: %w", i, locationName, err)
		}
		ids = append(ids, id)
	}

	return ids, nil
}

const (
	kphToMph  = 0.621371
	mbToInHg  = 0.02953
	kmToMiles = 0.621371
)
