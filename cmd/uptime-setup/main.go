// Package main provisions UptimeRobot monitors for the deployed API.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/maauso/jobportal-api/internal/config"
	"github.com/maauso/jobportal-api/internal/uptime"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadUptime()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	client, err := uptime.NewClient(cfg.APIKey)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	monitors := uptime.DefaultMonitors(cfg.BaseURL, cfg.FrontendURL)
	res, err := uptime.Provision(ctx, client, monitors, logger)
	if err != nil {
		return err
	}

	logger.Info("uptime monitors provisioned",
		slog.Int("created", len(res.Created)),
		slog.Int("skipped", len(res.Skipped)),
		slog.Int("failed", len(res.Failed)),
	)
	if len(res.Failed) > 0 {
		return fmt.Errorf("%d monitor(s) could not be created", len(res.Failed))
	}
	return nil
}
