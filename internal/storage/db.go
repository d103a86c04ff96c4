package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// schema is applied at open. Migration tooling is deliberately absent; the
// statements are idempotent, matching an embedded single-file store.
//
// weather_records is the source of truth. locations is a derived summary
// index maintained in the same transaction as every record write and can be
// rebuilt from weather_records at any time.
const schema = `
CREATE TABLE IF NOT EXISTS weather_records (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	location_name    TEXT NOT NULL,
	region           TEXT,
	country          TEXT,
	latitude         REAL,
	longitude        REAL,
	local_time       TEXT,
	observed_at      INTEGER NOT NULL,
	temperature_c    REAL,
	temperature_f    REAL,
	feels_like_c     REAL,
	feels_like_f     REAL,
	condition_text   TEXT,
	condition_icon   TEXT,
	humidity         INTEGER,
	wind_speed_kph   REAL,
	wind_speed_mph   REAL,
	wind_direction   TEXT,
	pressure_mb      REAL,
	pressure_in      REAL,
	visibility_km    REAL,
	visibility_miles REAL,
	uv_index         REAL,
	created_at       TEXT NOT NULL,
	updated_at       TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_records_location ON weather_records(location_name);
CREATE INDEX IF NOT EXISTS idx_records_created_at ON weather_records(created_at);
CREATE INDEX IF NOT EXISTS idx_records_location_observed ON weather_records(location_name, observed_at);

CREATE TABLE IF NOT EXISTS locations (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	location_name  TEXT NOT NULL,
	country        TEXT NOT NULL DEFAULT '',
	record_count   INTEGER NOT NULL DEFAULT 0,
	first_recorded TEXT NOT NULL,
	last_updated   TEXT NOT NULL,
	UNIQUE(location_name, country)
);
`

// Open opens (creating if necessary) the SQLite database at path, applies
// pragmas and the schema, and verifies the connection with a ping.
//
// The pool is capped at a single open connection. The upsert path is a
// read-then-write critical section; one connection plus one transaction
// serializes it without any further locking.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	dsn := "file:" + path + "?_txlock=immediate&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging database %s: %w", path, err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("applying schema to %s: %w", path, err)
	}

	return db, nil
}
