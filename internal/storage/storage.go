// Package storage provides the media host that stores uploaded job images.
// It defines the MediaHost interface (port) and implementations for
// S3-compatible object storage and local disk.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotConfigured is returned when no media host is configured.
var ErrNotConfigured = errors.New("media host is not configured")

// MediaHost stores objects and returns the absolute URL they are served from.
type MediaHost interface {
	// Upload streams body to key and returns its public URL.
	Upload(ctx context.Context, key, contentType string, body io.Reader) (url string, err error)

	// Ping checks the host is reachable and writable.
	Ping(ctx context.Context) error

	// Name identifies the backend in logs and health reports.
	Name() string
}
