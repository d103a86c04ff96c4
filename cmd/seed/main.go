// Command seed populates a database with randomized demo history for a
// location, one record per day. Useful for trying out the dashboard API
// without an upstream API key.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/nfrey/weathervault/internal/storage"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	dbPath := flag.String("db", "weather.db", "path to the SQLite database file")
	location := flag.String("location", "Demo City", "location name to seed")
	days := flag.Int("days", 7, "number of days of history to generate")
	flag.Parse()

	if *days < 1 {
		log.Error("days must be at least 1")
		os.Exit(1)
	}

	ctx := context.Background()

	db, err := storage.Open(ctx, *dbPath)
	if err != nil {
		log.Error("opening database", "path", *dbPath, "err", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	repo := storage.NewRepository(db)

	ids, err := repo.SeedDemoHistory(ctx, *location, *days)
	if err != nil {
		log.Error("seeding demo history", "location", *location, "err", err)
		os.Exit(1)
	}

	log.Info("demo history seeded", "location", *location, "records", len(ids), "db", *dbPath)
}
