// Package main provides the entry point for the Job Portal API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/maauso/jobportal-api/internal/bootstrap"
	"github.com/maauso/jobportal-api/internal/config"
	"github.com/maauso/jobportal-api/internal/server"
	"github.com/maauso/jobportal-api/internal/telemetry"
	"github.com/maauso/jobportal-api/internal/version"
)

const serviceName = "jobportal-api"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration from environment
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Create structured logger
	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting Job Portal API",
		slog.String("version", version.Version),
		slog.String("config", cfg.String()),
		slog.Bool("s3_enabled", cfg.S3Enabled()),
		slog.Bool("smtp_enabled", cfg.SMTPEnabled()),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	shutdownTracer, err := telemetry.InitTracer(ctx, serviceName, version.Version, cfg.OTelCollectorURL)
	if err != nil {
		return fmt.Errorf("initialize tracing: %w", err)
	}

	// Initialize dependencies using bootstrap
	deps, err := bootstrap.NewDependencies(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize dependencies: %w", err)
	}

	// Initialize HTTP handlers and router
	handlers := server.NewHandlers(deps.Jobs, deps.Auth, logger,
		server.WithLoginLimiter(deps.LoginLimiter),
		server.WithMediaHost(deps.Media, cfg.MediaFolder, cfg.MaxUploadBytes),
		server.WithAlerts(deps.Alerts),
		server.WithHealthChecker(deps.Health),
		server.WithDevelopment(cfg.IsDevelopment()),
	)
	routerCfg := server.DefaultConfig()
	routerCfg.AllowedOrigins = cfg.AllowedOrigins
	routerCfg.TracerName = serviceName + "/http"
	if deps.LocalMedia != nil {
		routerCfg.MediaDir = deps.LocalMedia.Dir()
	}
	router := server.NewRouter(handlers, logger, routerCfg)

	// Create HTTP server
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second, // Allow for image uploads
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Graceful shutdown handling
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening",
			slog.String("addr", srv.Addr),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server failed: %w", err)
		}
	}()

	// Wait for shutdown signal or error
	select {
	case sig := <-shutdownCh:
		logger.Info("received shutdown signal",
			slog.String("signal", sig.String()),
		)
	case err := <-errCh:
		_ = deps.Close(context.Background())
		_ = shutdownTracer(context.Background())
		return err
	}

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	logger.Info("shutting down server...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	// Let in-flight view counters and alert evaluations finish
	deps.Jobs.Wait()
	deps.Health.Wait()

	if err := deps.Close(shutdownCtx); err != nil {
		logger.Error("failed to close dependencies", slog.String("error", err.Error()))
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		logger.Error("failed to flush traces", slog.String("error", err.Error()))
	}

	logger.Info("server stopped gracefully")
	return nil
}
