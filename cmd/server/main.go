package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nfrey/weathervault/internal/api"
	"github.com/nfrey/weathervault/internal/cache"
	"github.com/nfrey/weathervault/internal/config"
	"github.com/nfrey/weathervault/internal/provider"
	"github.com/nfrey/weathervault/internal/scheduler"
	"github.com/nfrey/weathervault/internal/storage"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	if err := run(log); err != nil {
		log.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	ctx := context.Background()

	// Open the SQLite database. The schema is applied on open.
	db, err := storage.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() { _ = db.Close() }()
	log.Info("database ready", "path", cfg.DBPath)

	// The Redis cache is optional; skip it when no URL is configured.
	var (
		cacheLayer  *cache.Cache
		redisClient *redis.Client
	)
	if cfg.RedisURL != "" {
		redisClient, err = cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer func() { _ = redisClient.Close() }()
		cacheLayer = cache.NewCache(redisClient)
		log.Info("cache enabled")
	} else {
		log.Info("cache disabled; no REDIS_URL configured")
	}

	// Wire dependencies.
	repoOpts := []storage.Option{storage.WithMergeWindow(cfg.MergeWindow)}
	if cfg.MatchSubstring {
		repoOpts = append(repoOpts, storage.WithSubstringMatch())
	}
	repo := storage.NewRepository(db, repoOpts...)

	clientOpts := []provider.Option{}
	if cfg.WeatherAPIBaseURL != "" {
		clientOpts = append(clientOpts, provider.WithBaseURL(cfg.WeatherAPIBaseURL))
	}
	fetcher := provider.NewClient(cfg.WeatherAPIKey, clientOpts...)

	// nil interfaces keep the cache truly optional downstream.
	var storeCache api.ObservationCache
	var schedCache scheduler.Invalidator
	if cacheLayer != nil {
		storeCache = cacheLayer
		schedCache = cacheLayer
	}

	handlers := api.NewHandlers(repo, storeCache, fetcher, log)

	// Build router with pingers adapted for the health check.
	dbPinger := &sqlDBPinger{db: db}
	var cachePinger api.Pinger
	if redisClient != nil {
		cachePinger = &redisPingerAdapter{client: redisClient}
	}

	router := api.NewRouter(handlers, dbPinger, cachePinger, log)

	// Background polling and retention.
	sched := scheduler.New(fetcher, repo, schedCache, cfg.Locations, cfg.PollInterval, cfg.Retention, log)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}
	defer sched.Stop()

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error("server goroutine panicked", "recover", r)
				errCh <- fmt.Errorf("server panicked: %v", r)
			}
		}()
		log.Info("server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("listening: %w", err)
		}
	}()

	select {
	case sig := <-quit:
		log.Info("shutdown signal received", "signal", sig)
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	log.Info("server shut down cleanly")
	return nil
}

// sqlDBPinger adapts sql.DB to the api.Pinger interface.
type sqlDBPinger struct {
	db *sql.DB
}

func (p *sqlDBPinger) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// redisPingerAdapter adapts redis.Client to the api.Pinger interface.
type redisPingerAdapter struct {
	client *redis.Client
}

func (r *redisPingerAdapter) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
