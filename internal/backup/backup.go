// Package backup dumps the job database with mongodump and optionally ships
// the archive to object storage.
package backup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Static errors for backup operations.
var (
	// ErrURIRequired is returned when no MongoDB URI is provided.
	ErrURIRequired = errors.New("backup: MongoDB URI is required")
	// ErrDirRequired is returned when no backup directory is provided.
	ErrDirRequired = errors.New("backup: backup directory is required")
)

const (
	filePrefix = "job-portal-backup-"
	fileSuffix = ".archive.gz"
	// DefaultRetention is how long local archives are kept.
	DefaultRetention = 7 * 24 * time.Hour
)

// Uploader ships an archive to remote storage.
type Uploader interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader) (string, error)
}

// Config holds the backup settings.
type Config struct {
	MongoURI string
	Database string
	Dir      string
	// MongodumpPath defaults to "mongodump" (found via PATH).
	MongodumpPath string
	// Prefix is the object key prefix of uploaded archives.
	Prefix string
	// Retention is the maximum age of local archives. Zero means DefaultRetention.
	Retention time.Duration
}

// Runner performs backups.
type Runner struct {
	cfg      Config
	uploader Uploader
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithUploader ships each archive and removes the local copy after upload.
func WithUploader(u Uploader) Option {
	return func(r *Runner) {
		r.uploader = u
	}
}

// WithClock sets the time source used for archive names and retention.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		r.now = now
	}
}

// NewRunner creates a Runner.
func NewRunner(cfg Config, logger *slog.Logger, opts ...Option) (*Runner, error) {
	if cfg.MongoURI == "" {
		return nil, ErrURIRequired
	}
	if cfg.Dir == "" {
		return nil, ErrDirRequired
	}
	if cfg.MongodumpPath == "" {
		cfg.MongodumpPath = "mongodump"
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &Runner{cfg: cfg, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Result describes a completed backup.
type Result struct {
	// Path is the local archive. Empty once it has been uploaded and removed.
	Path string
	Size int64
	// URL is the uploaded location, if any.
	URL    string
	Pruned []string
}

// Run dumps the database to a gzipped archive, uploads it when an uploader
// is configured and prunes local archives older than the retention period.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	if err := os.MkdirAll(r.cfg.Dir, 0750); err != nil {
		return nil, fmt.Errorf("backup: create directory: %w", err)
	}

	now := r.now().UTC()
	name := filePrefix + now.Format("2006-01-02T15-04-05Z") + fileSuffix
	archive := filepath.Join(r.cfg.Dir, name)

	r.logger.Info("starting database backup",
		slog.String("database", r.cfg.Database),
		slog.String("archive", archive),
	)
	args := []string{
		"--archive=" + archive,
		"--gzip",
	}
	if r.cfg.Database != "" {
		args = append(args, "--db="+r.cfg.Database)
	}
	if err := r.runMongodump(ctx, args); err != nil {
		_ = os.Remove(archive)
		return nil, err
	}

	info, err := os.Stat(archive)
	if err != nil {
		return nil, fmt.Errorf("backup: stat archive: %w", err)
	}
	res := &Result{Path: archive, Size: info.Size()}
	r.logger.Info("database backup completed", slog.Int64("size", res.Size))

	if r.uploader != nil {
		url, err := r.upload(ctx, archive, name)
		if err != nil {
			return res, err
		}
		res.URL = url
		if err := os.Remove(archive); err != nil {
			r.logger.Warn("could not remove local archive", slog.String("error", err.Error()))
		} else {
			res.Path = ""
		}
	}

	res.Pruned = r.prune(now)
	return res, nil
}

func (r *Runner) upload(ctx context.Context, archive, name string) (string, error) {
	f, err := os.Open(archive) // #nosec G304 - path is built from configuration
	if err != nil {
		return "", fmt.Errorf("backup: open archive: %w", err)
	}
	defer func() { _ = f.Close() }()

	key := path.Join(strings.Trim(r.cfg.Prefix, "/"), name)
	url, err := r.uploader.Upload(ctx, key, "application/gzip", f)
	if err != nil {
		return "", fmt.Errorf("backup: upload archive: %w", err)
	}
	r.logger.Info("backup uploaded", slog.String("url", url))
	return url, nil
}

// prune removes local archives older than the retention period.
func (r *Runner) prune(now time.Time) []string {
	entries, err := os.ReadDir(r.cfg.Dir)
	if err != nil {
		r.logger.Warn("could not read backup directory", slog.String("error", err.Error()))
		return nil
	}

	var removed []string
	cutoff := now.Add(-r.cfg.Retention)
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), filePrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(r.cfg.Dir, e.Name())); err != nil {
			r.logger.Warn("could not delete old backup",
				slog.String("file", e.Name()),
				slog.String("error", err.Error()),
			)
			continue
		}
		r.logger.Info("deleted old backup", slog.String("file", e.Name()))
		removed = append(removed, e.Name())
	}
	return removed
}

// runMongodump executes mongodump with the given arguments and returns an
// error containing stderr output if the command fails. The connection string
// is handed over in a private config file so it never shows up in the
// process list.
func (r *Runner) runMongodump(ctx context.Context, args []string) error {
	configPath, err := r.writeConfig()
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(configPath) }()
	args = append([]string{"--config=" + configPath}, args...)

	// #nosec G204 - mongodumpPath is set by the operator, not user input
	cmd := exec.CommandContext(ctx, r.cfg.MongodumpPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("mongodump cancelled: %w", ctx.Err())
		}
		return &DumpError{
			Args:   args,
			Stderr: stderr.String(),
			Err:    err,
		}
	}
	return nil
}

// dumpConfig is the mongodump --config file format.
type dumpConfig struct {
	URI string `yaml:"uri"`
}

// writeConfig stores the URI in a 0600 file inside the backup directory.
func (r *Runner) writeConfig() (string, error) {
	data, err := yaml.Marshal(dumpConfig{URI: r.cfg.MongoURI})
	if err != nil {
		return "", fmt.Errorf("backup: encode mongodump config: %w", err)
	}
	f, err := os.CreateTemp(r.cfg.Dir, ".mongodump-*.yaml")
	if err != nil {
		return "", fmt.Errorf("backup: create mongodump config: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("backup: write mongodump config: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("backup: write mongodump config: %w", err)
	}
	return f.Name(), nil
}

// DumpError represents an error from running mongodump, including the stderr output.
type DumpError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *DumpError) Error() string {
	return fmt.Sprintf("mongodump error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, e.Stderr)
}

func (e *DumpError) Unwrap() error {
	return e.Err
}
