// Pic2Product - Visual Product Recommendation API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pic2product

// Command server runs the visual product recommendation API.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/pic2product/internal/api"
	"github.com/tomtom215/pic2product/internal/catalog"
	"github.com/tomtom215/pic2product/internal/config"
	"github.com/tomtom215/pic2product/internal/index"
	"github.com/tomtom215/pic2product/internal/logging"
	"github.com/tomtom215/pic2product/internal/pipeline"
	"github.com/tomtom215/pic2product/internal/vision"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	if err := run(cfg); err != nil {
		logging.Fatal().Err(err).Msg("Server exited with error")
	}
}

// sourceFactory builds catalog sources of the configured backend type, used
// by the rebuild endpoint's catalog_source override.
func sourceFactory(cfg *config.Config) func(path string) (catalog.Source, error) {
	return func(path string) (catalog.Source, error) {
		return catalog.NewSource(cfg.Catalog.SourceType, path)
	}
}

func run(cfg *config.Config) error {
	source, err := catalog.NewSource(cfg.Catalog.SourceType, cfg.Catalog.Source)
	if err != nil {
		return err
	}

	backend := vision.BackendConfig{
		Timeout:         cfg.Models.Timeout,
		BreakerFailures: cfg.Models.BreakerMaxFailures,
		BreakerCooldown: cfg.Models.BreakerCooldown,
	}
	detector := vision.NewHTTPDetector(cfg.Models.DetectorURL, backend)
	encoder := vision.NewHTTPEncoder(cfg.Models.EncoderURL, backend)

	cache, err := index.NewCache(cfg.Catalog.CacheDir)
	if err != nil {
		return err
	}
	manager := index.NewManager(source, encoder, cache)

	service, err := pipeline.NewService(detector, encoder, manager, cfg.Catalog.RunsDir, cfg.Recommend)
	if err != nil {
		return err
	}

	// Warm start in the background: restore the cached index, or build from
	// the source if one exists. The API serves immediately either way, with
	// recommendation requests rejected as CATALOG_NOT_READY until the
	// catalog is ready.
	go func() {
		ctx := context.Background()
		report, err := manager.Build(ctx, false)
		if err != nil {
			logging.Warn().Err(err).Msg("Catalog warmup failed, index stays offline until rebuild")
			return
		}
		logging.Info().Str("status", report.Status).Int("size", report.Size).
			Msg("Catalog warmup complete")
	}()

	handler := api.NewHandler(service, manager, sourceFactory(cfg))
	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           api.NewRouter(handler, cfg),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", srv.Addr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logging.Info().Str("signal", sig.String()).Msg("Shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return err
	}

	logging.Info().Msg("Server stopped")
	return nil
}
