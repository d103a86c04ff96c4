package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/nfrey/weathervault/internal/weather"
)

// DefaultMergeWindow is the maximum gap between two observations for the
// same location that still merges them into one stored row.
const DefaultMergeWindow = time.Hour

// timeLayout is used for created_at/updated_at at rest. RFC3339 in UTC is
// fixed-width, so lexicographic order matches chronological order and the
// purge cutoff can be a plain string comparison.
const timeLayout = time.RFC3339

const recordColumns = `id, location_name, region, country, latitude, longitude,
	local_time, observed_at, temperature_c, temperature_f, feels_like_c,
	feels_like_f, condition_text, condition_icon, humidity, wind_speed_kph,
	wind_speed_mph, wind_direction, pressure_mb, pressure_in, visibility_km,
	visibility_miles, uv_index, created_at, updated_at`

// Repository provides database access for weather records.
type Repository struct {
	db        *sql.DB
	window    time.Duration
	substring bool
	validate  *validator.Validate
}

// Option configures a Repository.
type Option func(*Repository)

// WithMergeWindow overrides the merge window. Non-positive values fall back
// to the default.
func WithMergeWindow(d time.Duration) Option {
	return func(r *Repository) {
		if d > 0 {
			r.window = d
		}
	}
}

// WithSubstringMatch makes GetByLocation and GetLatestByLocation match the
// location name as a substring (SQL LIKE) instead of exactly.
func WithSubstringMatch() Option {
	return func(r *Repository) { r.substring = true }
}

// NewRepository constructs a Repository over an opened database.
func NewRepository(db *sql.DB, opts ...Option) *Repository {
	r := &Repository{
		db:       db,
		window:   DefaultMergeWindow,
		validate: validator.New(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// checkObservation enforces the required-field contract before any write.
func (r *Repository) checkObservation(obs *weather.Observation) error {
	if err := r.validate.Struct(obs); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return &ValidationError{Field: verrs[0].Field()}
		}
		return &ValidationError{Field: "Observation"}
	}
	return nil
}

// Upsert inserts or updates the record for the observation's location.
//
// The most recent record for the location (by observed_at) is the open
// window. If it exists and the incoming observation's provider-reported time
// is within the merge window of it, that row is overwritten in place and
// updated_at refreshed; otherwise a new row is inserted. The lookup and the
// write share one transaction, so two upserts for the same location cannot
// both see "no recent record".
//
// Returns the record id and whether a new row was inserted.
func (r *Repository) Upsert(ctx context.Context, obs *weather.Observation) (int64, bool, error) {
	if err := r.checkObservation(obs); err != nil {
		return 0, false, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, &StorageError{Op: "begin upsert", Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	var lastID int64
	var lastObserved int64
	err = tx.QueryRowContext(ctx, `
		SELECT id, observed_at FROM weather_records
		WHERE location_name = ?
		ORDER BY observed_at DESC, id DESC
		LIMIT 1
	`, obs.LocationName).Scan(&lastID, &lastObserved)

	now := time.Now().UTC().Format(timeLayout)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		// First record for this location.
	case err != nil:
		return 0, false, &StorageError{Op: "upsert lookup", Err: err}
	case lastObserved > obs.ObservedAt.Unix()-int64(r.window.Seconds()):
		// Within the merge window: overwrite the open row. created_at and
		// id are left untouched. An observation delivered out of order
		// (observed_at behind the open row) also lands here.
		if err := r.updateTx(ctx, tx, lastID, obs, now); err != nil {
			return 0, false, err
		}
		if err := tx.Commit(); err != nil {
			return 0, false, &StorageError{Op: "commit upsert", Err: err}
		}
		return lastID, false, nil
	}

	id, err := r.insertTx(ctx, tx, obs, now, now)
	if err != nil {
		return 0, false, err
	}
	if err := tx.Commit(); err != nil {
		return 0, false, &StorageError{Op: "commit upsert", Err: err}
	}
	return id, true, nil
}

// InsertAt writes a record directly with the given store timestamp,
// bypassing the merge-window decision entirely. It exists for the demo
// seeder and for fixtures; the polling path must use Upsert.
func (r *Repository) InsertAt(ctx context.Context, obs *weather.Observation, at time.Time) (int64, error) {
	if err := r.checkObservation(obs); err != nil {
		return 0, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, &StorageError{Op: "begin insert", Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	ts := at.UTC().Format(timeLayout)
	id, err := r.insertTx(ctx, tx, obs, ts, ts)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, &StorageError{Op: "commit insert", Err: err}
	}
	return id, nil
}

// insertTx inserts a new record and bumps the derived locations summary
// inside the caller's transaction.
func (r *Repository) insertTx(ctx context.Context, tx *sql.Tx, obs *weather.Observation, createdAt, updatedAt string) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO weather_records (
			location_name, region, country, latitude, longitude, local_time,
			observed_at, temperature_c, temperature_f, feels_like_c,
			feels_like_f, condition_text, condition_icon, humidity,
			wind_speed_kph, wind_speed_mph, wind_direction, pressure_mb,
			pressure_in, visibility_km, visibility_miles, uv_index,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		obs.LocationName, obs.Region, obs.Country, obs.Latitude, obs.Longitude,
		obs.LocalTime, obs.ObservedAt.Unix(), obs.TemperatureC, obs.TemperatureF,
		obs.FeelsLikeC, obs.FeelsLikeF, obs.ConditionText, obs.ConditionIcon,
		obs.Humidity, obs.WindSpeedKph, obs.WindSpeedMph, obs.WindDirection,
		obs.PressureMb, obs.PressureIn, obs.VisibilityKm, obs.VisibilityMiles,
		obs.UVIndex, createdAt, updatedAt,
	)
	if err != nil {
		return 0, &StorageError{Op: "insert record", Err: err}
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, &StorageError{Op: "insert record", Err: err}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO locations (location_name, country, record_count, first_recorded, last_updated)
		VALUES (?, ?, 1, ?, ?)
		ON CONFLICT(location_name, country) DO UPDATE
		SET record_count = record_count + 1,
		    last_updated = excluded.last_updated
	`, obs.LocationName, obs.Country, createdAt, updatedAt)
	if err != nil {
		return 0, &StorageError{Op: "update location summary", Err: err}
	}

	return id, nil
}

// updateTx overwrites every measurement and condition field of the open row
// and refreshes updated_at inside the caller's transaction.
func (r *Repository) updateTx(ctx context.Context, tx *sql.Tx, id int64, obs *weather.Observation, updatedAt string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE weather_records SET
			region = ?, country = ?, latitude = ?, longitude = ?,
			local_time = ?, observed_at = ?, temperature_c = ?,
			temperature_f = ?, feels_like_c = ?, feels_like_f = ?,
			condition_text = ?, condition_icon = ?, humidity = ?,
			wind_speed_kph = ?, wind_speed_mph = ?, wind_direction = ?,
			pressure_mb = ?, pressure_in = ?, visibility_km = ?,
			visibility_miles = ?, uv_index = ?, updated_at = ?
		WHERE id = ?
	`,
		obs.Region, obs.Country, obs.Latitude, obs.Longitude, obs.LocalTime,
		obs.ObservedAt.Unix(), obs.TemperatureC, obs.TemperatureF,
		obs.FeelsLikeC, obs.FeelsLikeF, obs.ConditionText, obs.ConditionIcon,
		obs.Humidity, obs.WindSpeedKph, obs.WindSpeedMph, obs.WindDirection,
		obs.PressureMb, obs.PressureIn, obs.VisibilityKm, obs.VisibilityMiles,
		obs.UVIndex, updatedAt, id,
	)
	if err != nil {
		return &StorageError{Op: "update record", Err: err}
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE locations SET last_updated = ?
		WHERE location_name = ? AND country = ?
	`, updatedAt, obs.LocationName, obs.Country)
	if err != nil {
		return &StorageError{Op: "update location summary", Err: err}
	}

	return nil
}

// GetByLocation returns up to limit records for the location, newest first.
// Matching is exact unless the repository was built WithSubstringMatch.
func (r *Repository) GetByLocation(ctx context.Context, name string, limit int) ([]weather.Record, error) {
	where := "location_name = ?"
	arg := name
	if r.substring {
		where = "location_name LIKE ?"
		arg = "%" + name + "%"
	}

	q := fmt.Sprintf(`
		SELECT %s FROM weather_records
		WHERE %s
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, recordColumns, where)

	rows, err := r.db.QueryContext(ctx, q, arg, limit)
	if err != nil {
		return nil, &StorageError{Op: "query by location", Err: err}
	}
	defer rows.Close()

	return collectRecords(rows)
}

// GetLatestByLocation returns the most recent record for the location, or
// nil, nil when the location has no records. Absence is not an error.
func (r *Repository) GetLatestByLocation(ctx context.Context, name string) (*weather.Record, error) {
	recs, err := r.GetByLocation(ctx, name, 1)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return &recs[0], nil
}

// GetAllRecords returns up to limit records across all locations, newest
// first.
func (r *Repository) GetAllRecords(ctx context.Context, limit int) ([]weather.Record, error) {
	q := fmt.Sprintf(`
		SELECT %s FROM weather_records
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, recordColumns)

	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, &StorageError{Op: "query all records", Err: err}
	}
	defer rows.Close()

	return collectRecords(rows)
}

// GetAllLocations returns the per-location summaries, busiest location
// first, ties broken alphabetically.
func (r *Repository) GetAllLocations(ctx context.Context) ([]weather.LocationSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT location_name, country, record_count, first_recorded, last_updated
		FROM locations
		ORDER BY record_count DESC, location_name ASC
	`)
	if err != nil {
		return nil, &StorageError{Op: "query locations", Err: err}
	}
	defer rows.Close()

	var out []weather.LocationSummary
	for rows.Next() {
		var s weather.LocationSummary
		var first, last string
		if err := rows.Scan(&s.Name, &s.Country, &s.RecordCount, &first, &last); err != nil {
			return nil, &StorageError{Op: "scan location summary", Err: err}
		}
		if s.FirstRecorded, err = time.Parse(timeLayout, first); err != nil {
			return nil, &StorageError{Op: "parse location summary", Err: err}
		}
		if s.LastUpdated, err = time.Parse(timeLayout, last); err != nil {
			return nil, &StorageError{Op: "parse location summary", Err: err}
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "iterate locations", Err: err}
	}
	return out, nil
}

// PurgeOlderThan deletes every record whose created_at precedes now - age
// and returns the number of rows removed. The locations summary is
// recomputed from what survives.
func (r *Repository) PurgeOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-age).Format(timeLayout)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, &StorageError{Op: "begin purge", Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `DELETE FROM weather_records WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, &StorageError{Op: "purge records", Err: err}
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, &StorageError{Op: "purge records", Err: err}
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE locations SET record_count = (
			SELECT COUNT(*) FROM weather_records w
			WHERE w.location_name = locations.location_name
			  AND w.country = locations.country
		)
	`)
	if err != nil {
		return 0, &StorageError{Op: "rebuild location summary", Err: err}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM locations WHERE record_count = 0`); err != nil {
		return 0, &StorageError{Op: "rebuild location summary", Err: err}
	}

	if err := tx.Commit(); err != nil {
		return 0, &StorageError{Op: "commit purge", Err: err}
	}
	return deleted, nil
}

// collectRecords drains rows into records.
func collectRecords(rows *sql.Rows) ([]weather.Record, error) {
	var out []weather.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "iterate records", Err: err}
	}
	return out, nil
}

func scanRecord(rows *sql.Rows) (*weather.Record, error) {
	var rec weather.Record
	var observedAt int64
	var createdAt, updatedAt string

	err := rows.Scan(
		&rec.ID, &rec.LocationName, &rec.Region, &rec.Country, &rec.Latitude,
		&rec.Longitude, &rec.LocalTime, &observedAt, &rec.TemperatureC,
		&rec.TemperatureF, &rec.FeelsLikeC, &rec.FeelsLikeF,
		&rec.ConditionText, &rec.ConditionIcon, &rec.Humidity,
		&rec.WindSpeedKph, &rec.WindSpeedMph, &rec.WindDirection,
		&rec.PressureMb, &rec.PressureIn, &rec.VisibilityKm,
		&rec.VisibilityMiles, &rec.UVIndex, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, &StorageError{Op: "scan record", Err: err}
	}

	rec.ObservedAt = time.Unix(observedAt, 0).UTC()
	if rec.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, &StorageError{Op: "parse record timestamps", Err: err}
	}
	if rec.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return nil, &StorageError{Op: "parse record timestamps", Err: err}
	}
	return &rec, nil
}
