// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command privacyd serves the privacy filtering API.
//
// Every profile and endpoint payload leaves the service through the view
// guard (filter, then mask), and every route parameter is checked against
// the dangerous-pattern table before it is used.
//
// Usage:
//
//	go run ./cmd/privacyd
//	go run ./cmd/privacyd -port 9090 -debug
//	go run ./cmd/privacyd -trace-stdout
//	go run ./cmd/privacyd -otlp-endpoint localhost:4317
//
// Environment:
//
//	PRIVACY_DEFAULT_LEVEL       business_card | professional | public_full | ai_safe
//	PRIVACY_MASKING_ENABLED     true
//	PRIVACY_AUDIT_ENABLED       true
//	PRIVACY_AUDIT_HASH_CONTENT  true
//	PRIVACY_RATE_LIMIT_PER_MIN  120 (0 disables)
//	PRIVACY_STORE_DIR           empty for an in-memory store
//	PRIVACY_PATTERNS_FILE       optional pattern table override, reloaded on change
//
// Example requests:
//
//	curl http://localhost:8080/v1/privacy/health
//	curl 'http://localhost:8080/v1/users/jane/profile?level=professional'
//	curl -X PUT http://localhost:8080/v1/users/jane/profile \
//	  -H 'X-Authenticated-User: jane' -d @profile.json
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/privacyguard/services/privacy/api"
	"github.com/AleutianAI/privacyguard/services/privacy/guard"
	"github.com/AleutianAI/privacyguard/services/privacy/patterns"
	"github.com/AleutianAI/privacyguard/services/privacy/store"
	"github.com/AleutianAI/privacyguard/services/privacy/telemetry"
)

const shutdownTimeout = 10 * time.Second

type options struct {
	port         int
	debug        bool
	traceStdout  bool
	otlpEndpoint string
	storeDir     string
	patternsFile string
}

func main() {
	var opts options
	flag.IntVar(&opts.port, "port", 8080, "Port to listen on")
	flag.BoolVar(&opts.debug, "debug", false, "Enable debug mode")
	flag.BoolVar(&opts.traceStdout, "trace-stdout", false, "Print spans to stdout")
	flag.StringVar(&opts.otlpEndpoint, "otlp-endpoint", "", "Export spans to this OTLP gRPC endpoint")
	flag.StringVar(&opts.storeDir, "store-dir", "", "Badger directory (overrides PRIVACY_STORE_DIR)")
	flag.StringVar(&opts.patternsFile, "patterns-file", "", "Pattern table YAML (overrides PRIVACY_PATTERNS_FILE)")
	flag.Parse()

	logger := newLogger(opts.debug)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, logger); err != nil {
		logger.Error("privacyd exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

// telemetryConfig maps command-line flags onto the telemetry defaults.
// -otlp-endpoint wins over -trace-stdout.
func telemetryConfig(opts options) telemetry.Config {
	cfg := telemetry.DefaultConfig()
	switch {
	case opts.otlpEndpoint != "":
		cfg.TraceExporter = telemetry.ExporterOTLP
		cfg.OTLPEndpoint = opts.otlpEndpoint
	case opts.traceStdout:
		cfg.TraceExporter = telemetry.ExporterStdout
	}
	return cfg
}

// guardConfig loads the environment configuration and applies flag overrides.
func guardConfig(opts options) *guard.Config {
	cfg := guard.LoadConfig()
	if opts.storeDir != "" {
		cfg.StoreDir = opts.storeDir
	}
	if opts.patternsFile != "" {
		cfg.PatternsFile = opts.patternsFile
	}
	return cfg
}

func loadPatterns(ctx context.Context, path string) (*patterns.Library, error) {
	if path == "" {
		return patterns.Default()
	}
	return patterns.LoadFile(ctx, path)
}

func run(ctx context.Context, opts options, logger *slog.Logger) error {
	if opts.debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	shutdownTelemetry, err := telemetry.Init(ctx, telemetryConfig(opts))
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			logger.Warn("telemetry shutdown failed", slog.String("error", err.Error()))
		}
	}()

	cfg := guardConfig(opts)
	lib, err := loadPatterns(ctx, cfg.PatternsFile)
	if err != nil {
		return fmt.Errorf("load patterns: %w", err)
	}

	storeCfg := store.DefaultBadgerConfig(cfg.StoreDir)
	storeCfg.Logger = logger.With(slog.String("component", "badger"))
	st, err := store.OpenBadger(storeCfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Warn("failed to close store", slog.String("error", err.Error()))
		}
	}()

	handlers := api.NewHandlers(guard.New(lib, cfg, logger), st, api.HeaderAuthenticator{}, logger)

	if cfg.PatternsFile != "" {
		watcher, err := patterns.NewWatcher(cfg.PatternsFile, func(lib *patterns.Library) {
			handlers.SetGuard(guard.New(lib, cfg, logger))
		}, &patterns.WatcherOptions{Logger: logger})
		if err != nil {
			return fmt.Errorf("watch patterns: %w", err)
		}
		if err := watcher.Start(ctx); err != nil {
			return fmt.Errorf("watch patterns: %w", err)
		}
		defer watcher.Stop()
	}

	router := api.NewRouter(handlers, api.RouterOptions{
		ServiceName: "privacyguard",
		RateLimiter: api.NewClientRateLimiter(cfg.RateLimitPerMin),
		AccessLog:   opts.debug,
	})
	metrics := telemetry.MetricsHandler()
	if metrics == nil {
		metrics = promhttp.Handler()
	}
	router.GET("/metrics", gin.WrapH(metrics))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("starting privacyd",
		slog.String("address", srv.Addr),
		slog.String("default_level", cfg.DefaultLevel.String()),
		slog.Bool("masking_enabled", cfg.MaskingEnabled),
		slog.Bool("store_in_memory", st.InMemory()),
		slog.String("patterns_version", lib.Version()),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down privacyd")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
