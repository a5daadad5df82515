// Command sync-server starts the mobile session and synchronization backend.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/unityaid/mobile-sync/internal/cache"
	"github.com/unityaid/mobile-sync/internal/config"
	"github.com/unityaid/mobile-sync/internal/migrate"
	"github.com/unityaid/mobile-sync/internal/repository/postgres"
	httpserver "github.com/unityaid/mobile-sync/internal/server/http"
	"github.com/unityaid/mobile-sync/internal/service"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main parses configuration, runs migrations, and starts the HTTP server.
func main() {
	cfgPath := flag.String("config", "", "path to YAML config (optional, env vars otherwise)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		// logger is not up yet
		panic(err)
	}

	logger := newLogger(cfg.Env)
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("env", cfg.Env),
		zap.String("addr", cfg.HTTPServer.Address),
	)

	// Context with OS signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := migrate.Up(ctx, cfg.DB.DSN); err != nil {
		logger.Fatal("migrate up", zap.Error(err))
	}

	// DB pool
	db, err := postgres.New(ctx, cfg.DB.DSN)
	if err != nil {
		logger.Fatal("postgres.New", zap.Error(err))
	}
	defer db.Close()

	// Repositories
	userRepo := postgres.NewUserRepo(db)
	deviceRepo := postgres.NewDeviceRepo(db)
	tokenRepo := postgres.NewTokenRepo(db)
	syncLogRepo := postgres.NewSyncLogRepo(db)
	siteRepo := postgres.NewSiteRepo(db)
	assessmentRepo := postgres.NewAssessmentRepo(db)
	responseRepo := postgres.NewResponseRepo(db)
	reportRepo := postgres.NewReportRepo(db)

	// Services
	registry := service.NewDeviceRegistry(deviceRepo, cfg.Auth.MaxDevices)
	sessions := service.NewSessionManager(
		userRepo, tokenRepo, deviceRepo, registry,
		[]byte(cfg.Auth.JWTKey), cfg.Auth.AccessTTL, cfg.Auth.RefreshTTL,
	)
	engine := service.NewSyncEngine(
		syncLogRepo, siteRepo, assessmentRepo, responseRepo, reportRepo,
		cache.NewMemory(), service.SyncLimits{
			MaxSites:       cfg.Sync.MaxSites,
			MaxAssessments: cfg.Sync.MaxAssessments,
			MaxReports:     cfg.Sync.MaxReports,
			MaxUploadItems: cfg.Sync.MaxUploadItems,
		},
	)

	handler := httpserver.New(sessions, registry, engine, db, logger, version)
	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      handler.Routes(cfg.HTTPServer),
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
		ReadTimeout:  cfg.HTTPServer.ReadTimeout,
		WriteTimeout: cfg.HTTPServer.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.HTTPServer.Address))
		errCh <- srv.ListenAndServe()
	}()

	// Wait for stop
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown", zap.Error(err))
		}
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}

	logger.Info("shutdown complete")
}

func newLogger(env string) *zap.Logger {
	if env == "local" || env == "dev" {
		l, _ := zap.NewDevelopment()
		return l
	}
	l, _ := zap.NewProduction()
	return l
}
