package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/ignite/ga4-insight-engine/internal/api"
	"github.com/ignite/ga4-insight-engine/internal/cache"
	"github.com/ignite/ga4-insight-engine/internal/config"
	"github.com/ignite/ga4-insight-engine/internal/engine"
	"github.com/ignite/ga4-insight-engine/internal/repository/postgres"
	"github.com/ignite/ga4-insight-engine/internal/storage"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Analysis.PropertyID == "" {
		log.Fatal("analysis.property_id must be configured (or set GA4_PROPERTY_ID)")
	}

	ctx := context.Background()

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	log.Printf("[Server] storage ready (type=%s)", cfg.Storage.Type)

	// Run history is optional. Without a database the API still serves
	// analysis and latest-result lookups.
	var runRepo *postgres.RunRepo
	if cfg.Database.URL != "" {
		db, err := sql.Open("postgres", cfg.Database.URL)
		if err != nil {
			log.Fatalf("Failed to open database: %v", err)
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := db.PingContext(pingCtx); err != nil {
			cancel()
			log.Fatalf("Database unreachable: %v", err)
		}
		cancel()
		runRepo = postgres.NewRunRepo(db)
		if err := runRepo.EnsureSchema(ctx); err != nil {
			log.Fatalf("Failed to ensure schema: %v", err)
		}
		log.Println("[Server] run history database connected")
	} else {
		log.Println("[Server] no database configured, run history disabled")
	}

	var source engine.RowSource = engine.NewFileSource(cfg.Analysis.RowsPath)
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		if err := client.Ping(ctx).Err(); err != nil {
			log.Printf("[Server] redis unreachable, row cache disabled: %v", err)
		} else {
			source = cache.NewCachedSource(source, cache.NewRowCache(client, cfg.Redis.TTL()))
			log.Printf("[Server] row cache enabled (ttl=%s)", cfg.Redis.TTL())
		}
	}

	orchestrator := engine.New(source, engine.Options{
		Metrics:                cfg.Analysis.Metrics,
		Dimensions:             cfg.Analysis.Dimensions,
		RateMetrics:            cfg.Analysis.RateMetricSet(),
		TrafficSourceDimension: cfg.Analysis.TrafficSourceDimension,
		DeviceDimension:        cfg.Analysis.DeviceDimension,
		Thresholds:             cfg.Analysis.ComparisonThresholds.Thresholds(),
		CloseSecondPoints:      cfg.Analysis.TrafficCloseSecondPoints,
		MaxConcurrentFetches:   cfg.Analysis.MaxConcurrentFetches,
		URLTimeout:             cfg.Analysis.URLTimeout(),
	})

	handlers := api.NewHandlers(orchestrator, store, runRepo, cfg.Analysis)
	server := api.NewServer(cfg.Server, handlers)

	go func() {
		addr := cfg.Server.Addr()
		log.Printf("[Server] listening on %s", addr)
		if err := server.ListenAndServe(addr); err != nil {
			log.Printf("[Server] stopped: %v", err)
		}
	}()

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	<-done

	log.Println("[Server] shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("[Server] shutdown error: %v", err)
	}
}
