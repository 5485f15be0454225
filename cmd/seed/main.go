// Package main loads sample job postings into the configured store.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/maauso/jobportal-api/internal/config"
	"github.com/maauso/jobportal-api/internal/database"
	"github.com/maauso/jobportal-api/internal/jobs"
	"github.com/maauso/jobportal-api/internal/seed"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	reset := flag.Bool("reset", false, "delete every posting before seeding")
	file := flag.String("file", "", "YAML fixture file (defaults to the built-in sample postings)")
	flag.Parse()

	cfg, err := config.LoadSeed()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	fixtures := seed.Default()
	if *file != "" {
		f, err := os.Open(*file)
		if err != nil {
			return fmt.Errorf("open fixtures: %w", err)
		}
		fixtures, err = seed.Load(f)
		_ = f.Close()
		if err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	var repo jobs.Repository
	if cfg.Driver == config.DriverMemory {
		logger.Warn("seeding the in-memory store; postings are discarded on exit")
		repo = jobs.NewMemoryRepository()
	} else {
		mongo, err := database.Connect(ctx, cfg.MongoURI, cfg.MongoDB, logger)
		if err != nil {
			return fmt.Errorf("connect to MongoDB: %w", err)
		}
		defer mongo.Close(context.Background())

		mrepo := jobs.NewMongoRepository(mongo.Database, cfg.MongoCollection)
		if err := mrepo.EnsureIndexes(ctx); err != nil {
			return fmt.Errorf("ensure job indexes: %w", err)
		}
		repo = mrepo
	}

	seeder := seed.NewSeeder(jobs.NewService(repo, logger), repo, logger)
	res, err := seeder.Run(ctx, fixtures, *reset)
	if err != nil {
		return err
	}

	logger.Info("seeding completed",
		slog.Int64("removed", res.Removed),
		slog.Int("inserted", len(res.Inserted)),
	)
	return nil
}
