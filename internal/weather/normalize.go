package weather

import (
	"fmt"
	"time"
)

// Unit conversion factors. WeatherAPI usually reports both unit systems, but
// the normalizer must fill in whichever side is absent.
const (
	kphPerMph  = 0.621371
	inHgPerMb  = 0.02953
	milesPerKm = 0.621371
)

// Payload mirrors the provider's current-conditions response shape
// (location section + current section). Numeric fields are pointers so a
// missing field can be told apart from a legitimate zero.
type Payload struct {
	Location struct {
		Name           string   `json:"name"`
		Region         string   `json:"region"`
		Country        string   `json:"country"`
		Lat            *float64 `json:"lat"`
		Lon            *float64 `json:"lon"`
		Localtime      string   `json:"localtime"`
		LocaltimeEpoch int64    `json:"localtime_epoch"`
	} `json:"location"`
	Current struct {
		TempC      *float64 `json:"temp_c"`
		TempF      *float64 `json:"temp_f"`
		FeelslikeC *float64 `json:"feelslike_c"`
		FeelslikeF *float64 `json:"feelslike_f"`
		Condition  struct {
			Text string `json:"text"`
			Icon string `json:"icon"`
		} `json:"condition"`
		Humidity   *int     `json:"humidity"`
		WindKph    *float64 `json:"wind_kph"`
		WindMph    *float64 `json:"wind_mph"`
		WindDir    string   `json:"wind_dir"`
		PressureMb *float64 `json:"pressure_mb"`
		PressureIn *float64 `json:"pressure_in"`
		VisKm      *float64 `json:"vis_km"`
		VisMiles   *float64 `json:"vis_miles"`
		UV         *float64 `json:"uv"`
	} `json:"current"`
}

// NormalizationError reports a provider payload that is missing a required
// field and therefore cannot be turned into an Observation.
type NormalizationError struct {
	MissingField string
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("normalizing observation: missing required field %q", e.MissingField)
}

// Normalize transforms a provider payload into a canonical Observation.
// Location name, coordinates, at least one temperature reading, and the
// condition text are required; everything else defaults to its zero value
// with the counterpart unit derived where one side is present.
func Normalize(p *Payload) (*Observation, error) {
	switch {
	case p.Location.Name == "":
		return nil, &NormalizationError{MissingField: "location.name"}
	case p.Location.Lat == nil:
		return nil, &NormalizationError{MissingField: "location.lat"}
	case p.Location.Lon == nil:
		return nil, &NormalizationError{MissingField: "location.lon"}
	case p.Current.TempC == nil && p.Current.TempF == nil:
		return nil, &NormalizationError{MissingField: "current.temp_c"}
	case p.Current.Condition.Text == "":
		return nil, &NormalizationError{MissingField: "current.condition.text"}
	}

	tempC, tempF := bothTemps(p.Current.TempC, p.Current.TempF)
	feelsC, feelsF := tempC, tempF
	if p.Current.FeelslikeC != nil || p.Current.FeelslikeF != nil {
		feelsC, feelsF = bothTemps(p.Current.FeelslikeC, p.Current.FeelslikeF)
	}

	windKph, windMph := bothScaled(p.Current.WindKph, p.Current.WindMph, kphPerMph)
	pressMb, pressIn := bothScaled(p.Current.PressureMb, p.Current.PressureIn, inHgPerMb)
	visKm, visMiles := bothScaled(p.Current.VisKm, p.Current.VisMiles, milesPerKm)

	observedAt := time.Now().UTC()
	if p.Location.LocaltimeEpoch > 0 {
		observedAt = time.Unix(p.Location.LocaltimeEpoch, 0).UTC()
	}

	obs := &Observation{
		LocationName:    p.Location.Name,
		Region:          p.Location.Region,
		Country:         p.Location.Country,
		Latitude:        *p.Location.Lat,
		Longitude:       *p.Location.Lon,
		LocalTime:       p.Location.Localtime,
		ObservedAt:      observedAt,
		TemperatureC:    tempC,
		TemperatureF:    tempF,
		FeelsLikeC:      feelsC,
		FeelsLikeF:      feelsF,
		ConditionText:   p.Current.Condition.Text,
		ConditionIcon:   p.Current.Condition.Icon,
		WindSpeedKph:    windKph,
		WindSpeedMph:    windMph,
		WindDirection:   p.Current.WindDir,
		PressureMb:      pressMb,
		PressureIn:      pressIn,
		VisibilityKm:    visKm,
		VisibilityMiles: visMiles,
	}

	if p.Current.Humidity != nil {
		obs.Humidity = *p.Current.Humidity
	}
	if p.Current.UV != nil {
		obs.UVIndex = *p.Current.UV
	}

	return obs, nil
}

// bothTemps returns the Celsius and Fahrenheit values, deriving the missing
// one via F = C*9/5 + 32. At least one of c, f must be non-nil.
func bothTemps(c, f *float64) (float64, float64) {
	switch {
	case c != nil && f != nil:
		return *c, *f
	case c != nil:
		return *c, *c*9/5 + 32
	default:
		return (*f - 32) * 5 / 9, *f
	}
}

// bothScaled returns the metric and imperial values for a pair related by a
// linear factor (imperial = metric * factor). Nil inputs yield zeros.
func bothScaled(metric, imperial *float64, factor float64) (float64, float64) {
	switch {
	case metric != nil && imperial != nil:
		return *metric, *imperial
	case metric != nil:
		return *metric, *metric * factor
	case imperial != nil:
		return *imperial / factor, *imperial
	default:
		return 0, 0
	}
}
