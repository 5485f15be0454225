package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalHost implements MediaHost on local disk. Objects are written under
// dir and served by the API at baseURL.
type LocalHost struct {
	dir     string
	baseURL string
}

// NewLocalHost creates a new LocalHost instance.
// If dir is empty, a directory under os.TempDir() is used.
// The directory is created if it doesn't exist.
func NewLocalHost(dir, baseURL string) (*LocalHost, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "jobportal", "media")
	}

	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create media directory: %w", err)
	}

	return &LocalHost{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Dir returns the media directory path.
func (s *LocalHost) Dir() string {
	return s.dir
}

// Upload writes body to a temporary file and renames it into place so a
// partially written object is never served.
func (s *LocalHost) Upload(ctx context.Context, key, _ string, body io.Reader) (string, error) {
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	dest, err := s.path(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0750); err != nil {
		return "", fmt.Errorf("create object directory: %w", err)
	}

	f, err := os.CreateTemp(filepath.Dir(dest), ".upload_*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	tmpName := f.Name()
	if _, err := io.Copy(f, body); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("write object: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("close object: %w", err)
	}

	if err := os.Rename(tmpName, dest); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("rename object: %w", err)
	}

	return s.baseURL + "/" + filepath.ToSlash(key), nil
}

// Ping checks the media directory still exists.
func (s *LocalHost) Ping(_ context.Context) error {
	info, err := os.Stat(s.dir)
	if err != nil {
		return fmt.Errorf("stat media directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("media path %s is not a directory", s.dir)
	}
	return nil
}

// Name returns "local".
func (s *LocalHost) Name() string {
	return "local"
}

// path resolves key inside dir, rejecting keys that escape it.
func (s *LocalHost) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(s.dir, clean), nil
}
