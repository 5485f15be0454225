// Package main dumps the job database and optionally uploads the archive to S3.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/maauso/jobportal-api/internal/backup"
	"github.com/maauso/jobportal-api/internal/config"
	"github.com/maauso/jobportal-api/internal/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadBackup()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, 30*time.Minute)
	defer cancel()

	var opts []backup.Option
	if cfg.S3Enabled() {
		host, err := storage.NewS3Host(ctx, storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			PublicURL:       cfg.S3PublicURL,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		})
		if err != nil {
			return fmt.Errorf("create S3 client: %w", err)
		}
		opts = append(opts, backup.WithUploader(host))
		logger.Info("backups will be uploaded to S3", slog.String("bucket", cfg.S3Bucket))
	}

	runner, err := backup.NewRunner(backup.Config{
		MongoURI:      cfg.MongoURI,
		Database:      cfg.MongoDB,
		Dir:           cfg.BackupDir,
		MongodumpPath: cfg.MongodumpPath,
		Prefix:        cfg.S3Prefix,
	}, logger, opts...)
	if err != nil {
		return err
	}

	res, err := runner.Run(ctx)
	if err != nil {
		return fmt.Errorf("backup failed: %w", err)
	}

	logger.Info("backup finished",
		slog.String("path", res.Path),
		slog.String("url", res.URL),
		slog.Int64("size", res.Size),
		slog.Int("pruned", len(res.Pruned)),
	)
	return nil
}
