package weather

import "time"

// Observation is the canonical flat weather record for one location at one
// point in time. All measurements carry both unit systems; the normalizer
// derives the missing one when the provider supplies only one.
type Observation struct {
	LocationName string `json:"location_name" validate:"required"`
	Region       string `json:"region"`
	Country      string `json:"country"`

	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`

	// LocalTime is the provider-reported local timestamp string, kept opaque.
	// ObservedAt is the provider-reported sample time and drives the
	// merge-window decision in storage.
	LocalTime  string    `json:"local_time"`
	ObservedAt time.Time `json:"observed_at" validate:"required"`

	TemperatureC float64 `json:"temperature_c"`
	TemperatureF float64 `json:"temperature_f"`
	FeelsLikeC   float64 `json:"feels_like_c"`
	FeelsLikeF   float64 `json:"feels_like_f"`

	ConditionText string `json:"condition_text" validate:"required"`
	ConditionIcon string `json:"condition_icon"`

	Humidity        int     `json:"humidity"`
	WindSpeedKph    float64 `json:"wind_speed_kph"`
	WindSpeedMph    float64 `json:"wind_speed_mph"`
	WindDirection   string  `json:"wind_direction"`
	PressureMb      float64 `json:"pressure_mb"`
	PressureIn      float64 `json:"pressure_in"`
	VisibilityKm    float64 `json:"visibility_km"`
	VisibilityMiles float64 `json:"visibility_miles"`
	UVIndex         float64 `json:"uv_index"`
}

// Record is a stored observation with its surrogate id and the
// store-assigned timestamps. CreatedAt is set once at first insert;
// UpdatedAt is refreshed on every merge-update.
type Record struct {
	ID int64 `json:"id"`
	Observation
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LocationSummary is a per-location rollup served from the derived
// locations index.
type LocationSummary struct {
	Name          string    `json:"location_name"`
	Country       string    `json:"country"`
	RecordCount   int       `json:"record_count"`
	FirstRecorded time.Time `json:"first_recorded"`
	LastUpdated   time.Time `json:"last_updated"`
}
