// Package bootstrap provides dependency initialization for the Job Portal API.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/maauso/jobportal-api/internal/alerts"
	"github.com/maauso/jobportal-api/internal/auth"
	"github.com/maauso/jobportal-api/internal/config"
	"github.com/maauso/jobportal-api/internal/database"
	"github.com/maauso/jobportal-api/internal/health"
	"github.com/maauso/jobportal-api/internal/jobs"
	"github.com/maauso/jobportal-api/internal/storage"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	Jobs         *jobs.Service
	Auth         *auth.Authenticator
	LoginLimiter *auth.ClientLimiter
	Media        storage.MediaHost
	// LocalMedia is set when uploads are kept on disk and served by the API.
	LocalMedia *storage.LocalHost
	Alerts     *alerts.Service
	Health     *health.Checker

	closers []func(context.Context) error
}

// Close releases connections in reverse order of creation.
func (d *Dependencies) Close(ctx context.Context) error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{}
	ok := false
	defer func() {
		if !ok {
			_ = deps.Close(context.Background())
		}
	}()

	// Initialize job store
	repo, mongo, err := initStore(ctx, &cfg.Store, logger)
	if err != nil {
		return nil, err
	}
	if mongo != nil {
		deps.closers = append(deps.closers, func(ctx context.Context) error {
			mongo.Close(ctx)
			return nil
		})
	}
	deps.Jobs = jobs.NewService(repo, logger)

	// Initialize admin authentication
	deps.Auth, err = auth.New(auth.Config{
		Secret:       cfg.JWTSecret,
		TTL:          cfg.TokenTTL,
		Email:        cfg.AdminEmail,
		Password:     cfg.AdminPassword,
		PasswordHash: cfg.AdminPasswordHash,
	})
	if err != nil {
		return nil, fmt.Errorf("create authenticator: %w", err)
	}
	deps.LoginLimiter = auth.NewClientLimiter(cfg.LoginRatePerMin)

	// Initialize media host
	if err := deps.initMedia(ctx, cfg, logger); err != nil {
		return nil, err
	}

	// Initialize alerting
	alertStore, redisConfigured, err := deps.initAlertStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	notifier, err := alerts.NewSMTPNotifier(alerts.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	})
	if err != nil {
		logger.Info("alert emails disabled", slog.String("reason", err.Error()))
		deps.Alerts = alerts.NewService(alertStore, nil, logger)
	} else {
		logger.Info("alert emails configured", slog.String("smtp_host", cfg.SMTPHost))
		deps.Alerts = alerts.NewService(alertStore, notifier, logger)
	}

	// Initialize health checker
	dbDep := health.Dependency{Name: "mongodb", AlertType: alerts.TypeDatabase}
	if mongo != nil {
		dbDep.Critical = true
		dbDep.Probe = mongo
	}
	cacheDep := health.Dependency{Name: "redis", AlertType: alerts.TypeCache}
	if redisConfigured {
		cacheDep.Probe = health.Timed(deps.Alerts)
	}
	deps.Health = health.NewChecker([]health.Dependency{
		dbDep,
		{Name: "media", AlertType: alerts.TypeMedia, Probe: health.Timed(deps.Media)},
		cacheDep,
	}, logger,
		health.WithAlerter(deps.Alerts),
		health.WithEnvironment(cfg.AppEnv, cfg.IsDevelopment()),
	)

	ok = true
	return deps, nil
}

// initStore creates the job repository selected by STORE_DRIVER.
func initStore(ctx context.Context, cfg *config.Store, logger *slog.Logger) (jobs.Repository, *database.Mongo, error) {
	if cfg.Driver == config.DriverMemory {
		logger.Warn("using in-memory job store; data is lost on restart")
		return jobs.NewMemoryRepository(), nil, nil
	}

	mongo, err := database.Connect(ctx, cfg.MongoURI, cfg.MongoDB, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to MongoDB: %w", err)
	}
	repo := jobs.NewMongoRepository(mongo.Database, cfg.MongoCollection)
	if err := repo.EnsureIndexes(ctx); err != nil {
		mongo.Close(ctx)
		return nil, nil, fmt.Errorf("ensure job indexes: %w", err)
	}
	logger.Info("MongoDB job store configured",
		slog.String("database", cfg.MongoDB),
		slog.String("collection", cfg.MongoCollection),
	)
	return repo, mongo, nil
}

// initMedia creates the S3 media host when configured, local disk otherwise.
func (d *Dependencies) initMedia(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
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
			return fmt.Errorf("create S3 media host: %w", err)
		}
		logger.Info("S3 media host configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		d.Media = host
		return nil
	}

	baseURL := cfg.MediaBaseURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("http://localhost:%d/media", cfg.Port)
	}
	local, err := storage.NewLocalHost(cfg.MediaDir, baseURL)
	if err != nil {
		return fmt.Errorf("create local media host: %w", err)
	}
	logger.Info("local media host configured",
		slog.String("media_dir", local.Dir()),
		slog.String("base_url", baseURL),
	)
	d.Media = local
	d.LocalMedia = local
	return nil
}

// initAlertStore persists alert state in Redis when REDIS_URL is set.
func (d *Dependencies) initAlertStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (alerts.Store, bool, error) {
	if cfg.RedisURL == "" {
		logger.Info("alert store in memory; configuration is lost on restart")
		return alerts.NewMemoryStore(), false, nil
	}

	client, err := alerts.NewRedisClient(cfg.RedisURL)
	if err != nil {
		return nil, false, fmt.Errorf("create Redis client: %w", err)
	}
	d.closers = append(d.closers, func(context.Context) error {
		return client.Close()
	})
	store := alerts.NewRedisStore(client, "jobportal")
	if err := store.Ping(ctx); err != nil {
		// Redis may come up after the API; the health check reports it meanwhile.
		logger.Warn("Redis not reachable at startup", slog.String("error", err.Error()))
	} else {
		logger.Info("Redis alert store configured")
	}
	return store, true, nil
}
