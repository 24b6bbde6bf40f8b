package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	httpadapter "github.com/couchcryptid/wildfire-linker/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/wildfire-linker/internal/adapter/kafka"
	"github.com/couchcryptid/wildfire-linker/internal/adapter/mapbox"
	"github.com/couchcryptid/wildfire-linker/internal/adapter/recordfile"
	"github.com/couchcryptid/wildfire-linker/internal/config"
	"github.com/couchcryptid/wildfire-linker/internal/domain"
	"github.com/couchcryptid/wildfire-linker/internal/match"
	"github.com/couchcryptid/wildfire-linker/internal/observability"
	"github.com/couchcryptid/wildfire-linker/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	engine, err := match.NewEngine(cfg.Match, logger, metrics)
	if err != nil {
		logger.Error("failed to create matching engine", "error", err)
		os.Exit(1)
	}

	records, err := recordfile.LoadTargets(cfg.TargetsPath)
	if err != nil {
		logger.Error("failed to load targets", "path", cfg.TargetsPath, "error", err)
		os.Exit(1)
	}
	targets, warnings := domain.ParseTargets(records)
	for _, w := range warnings {
		logger.Warn("target rejected", "target_id", w.EntityID, "error", w.Err)
	}
	engine.LoadTargets(targets)

	// Geocoding is feature-flagged via MAPBOX_ENABLED / MAPBOX_TOKEN.
	var geocoder domain.Geocoder
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, metrics, logger)
		geocoder = mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, mapbox.DefaultPrecision, metrics)
		metrics.GeocodeEnabled.Set(1)
		logger.Info("mapbox geocoding enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	} else {
		logger.Info("mapbox geocoding disabled")
	}

	reader := kafkaadapter.NewReader(cfg, logger)
	writer := kafkaadapter.NewWriter(cfg, logger)
	transformer := pipeline.NewTransformer(engine, geocoder, logger, cfg.IncludeRejections)

	p := pipeline.New(reader, transformer, writer, logger, metrics, cfg.BatchSize)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, engine, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := reader.Close(); err != nil {
		logger.Error("kafka reader close error", "error", err)
	}
	if err := writer.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}

	logger.Info("shutdown complete")
}
