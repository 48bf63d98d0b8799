package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/star/closeapproach/internal/api"
	"github.com/star/closeapproach/internal/auth"
	"github.com/star/closeapproach/internal/cache"
	"github.com/star/closeapproach/internal/cad"
	"github.com/star/closeapproach/internal/config"
	"github.com/star/closeapproach/internal/export"
	"github.com/star/closeapproach/internal/health"
	"github.com/star/closeapproach/internal/session"
	"github.com/star/closeapproach/internal/trend"
	"github.com/star/closeapproach/web"
)

func main() {
	started := time.Now()

	var level slog.LevelVar
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: &level,
	}))

	cfg, err := config.Load(logger)
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	level.Set(cfg.LogLevel())

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if cfg.Server.AuthEnabled {
		logger.Info("auth enabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fetcher := cad.NewFetcher(cfg.Provider.SourceURL, logger,
		cad.WithTimeout(cfg.Provider.Timeout),
		cad.WithMaxBodyBytes(cfg.Provider.MaxBodyBytes),
	)

	// A nil *PayloadCache must not reach the runner as a non-nil interface.
	var payloadCache cad.PayloadCache
	if pc := cache.New(cache.Config{Dir: cfg.Cache.Dir, MaxFiles: cfg.Cache.MaxFiles, MaxAge: cfg.Cache.MaxAge}, logger); pc != nil {
		payloadCache = pc
	}
	runner := cad.NewRunner(fetcher, payloadCache, logger)

	var uploader api.Uploader
	s3, err := export.NewS3Uploader(ctx, export.S3Config{
		Bucket:       cfg.Export.S3Bucket,
		Prefix:       cfg.Export.S3Prefix,
		Region:       cfg.Export.S3Region,
		Endpoint:     cfg.Export.S3Endpoint,
		UsePathStyle: cfg.Export.S3UsePathStyle,
	})
	switch {
	case errors.Is(err, export.ErrS3NotConfigured):
		logger.Info("s3 export disabled, no bucket configured")
	case err != nil:
		logger.Warn("s3 export disabled", "error", err)
	default:
		uploader = s3
		logger.Info("s3 export enabled", "bucket", s3.Bucket(), "prefix", cfg.Export.S3Prefix)
	}

	capability := trend.Resolve(cfg.Features.TrendLine)
	logger.Info("trend line capability", "enabled", capability.Enabled, "reason", capability.Reason)

	sessions := session.NewStore(cfg.Server.SessionTTL, logger)
	go sessions.Start(ctx)

	authCfg := auth.Config{
		Enabled:    cfg.Server.AuthEnabled,
		Token:      cfg.Server.AuthToken,
		OpenSearch: cfg.Server.AuthOpenSearch,
	}

	var ready health.Checker
	srv := api.NewServer(api.Config{
		Addr:            cfg.Server.Addr,
		Auth:            authCfg,
		MaxFetchesPerIP: cfg.Server.MaxFetchesPerIP,
		MaxFetches:      cfg.Server.MaxFetches,
		TrustProxy:      cfg.Server.TrustProxy,
		Trend:           capability,
	}, logger, runner, sessions, uploader, &ready, web.Content)

	go func() {
		logger.Info("starting server",
			"addr", cfg.Server.Addr,
			"source_url", fetcher.SourceURL(),
			"auth_enabled", cfg.Server.AuthEnabled,
			"payload_cache", payloadCache != nil,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server listen error", "error", err)
			os.Exit(1)
		}
	}()
	ready.SetReady(true)

	<-ctx.Done()
	ready.SetReady(false)
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped", "uptime_seconds", int(time.Since(started).Seconds()))
}
