// Package database manages the shared MongoDB client.
package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

const connectTimeout = 10 * time.Second

// Mongo wraps a connected client and the application database. The client
// holds a connection pool and is safe for concurrent use.
type Mongo struct {
	Client   *mongo.Client
	Database *mongo.Database
	logger   *slog.Logger
}

// Connect opens a client for uri, verifies it with a ping and selects db.
func Connect(ctx context.Context, uri, db string, logger *slog.Logger) (*Mongo, error) {
	if logger == nil {
		logger = slog.Default()
	}

	client, err := mongo.Connect(options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(connectTimeout))
	if err != nil {
		return nil, fmt.Errorf("mongo: connect: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo: ping: %w", err)
	}

	logger.Info("MongoDB connected", slog.String("database", db))
	return &Mongo{
		Client:   client,
		Database: client.Database(db),
		logger:   logger,
	}, nil
}

// Ping checks the primary is reachable and reports the round trip.
func (m *Mongo) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := m.Client.Ping(ctx, readpref.Primary()); err != nil {
		return 0, err
	}
	return time.Since(start), nil
}

// Close disconnects the client. Errors are logged since this runs on shutdown.
func (m *Mongo) Close(ctx context.Context) {
	if m.Client == nil {
		return
	}
	if err := m.Client.Disconnect(ctx); err != nil {
		m.logger.Warn("error disconnecting MongoDB client", slog.String("error", err.Error()))
		return
	}
	m.logger.Info("MongoDB connection closed")
}
