// Package seed loads sample job postings into a store.
package seed

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/maauso/jobportal-api/internal/jobs"
)

//go:embed fixtures.yaml
var defaultFixtures []byte

// ErrNoFixtures is returned when a fixture file holds no postings.
var ErrNoFixtures = errors.New("seed: no fixtures")

// Fixture is a draft whose dates are computed at seeding time.
type Fixture struct {
	jobs.Draft `yaml:",inline"`
	// ValidForDays sets lastDate this many days after publishDate. It is
	// ignored when the fixture carries an explicit lastDate.
	ValidForDays int `yaml:"validForDays"`
}

// Load decodes a YAML list of fixtures.
func Load(r io.Reader) ([]Fixture, error) {
	var fixtures []Fixture
	if err := yaml.NewDecoder(r).Decode(&fixtures); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNoFixtures
		}
		return nil, fmt.Errorf("seed: decode fixtures: %w", err)
	}
	if len(fixtures) == 0 {
		return nil, ErrNoFixtures
	}
	return fixtures, nil
}

// Default returns the built-in sample postings.
func Default() []Fixture {
	fixtures, err := Load(bytes.NewReader(defaultFixtures))
	if err != nil {
		panic(fmt.Sprintf("seed: embedded fixtures: %v", err))
	}
	return fixtures
}

// Seeder inserts fixtures through the job service so every posting passes
// the same validation as API-created ones.
type Seeder struct {
	svc    *jobs.Service
	repo   jobs.Repository
	logger *slog.Logger
	now    func() time.Time
}

// NewSeeder creates a Seeder. repo must be the repository behind svc.
func NewSeeder(svc *jobs.Service, repo jobs.Repository, logger *slog.Logger) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{svc: svc, repo: repo, logger: logger, now: time.Now}
}

// Result reports what a seeding run did.
type Result struct {
	Removed  int64
	Inserted []*jobs.Posting
}

// Run inserts fixtures, first removing every posting when reset is set. It
// stops at the first posting that fails validation.
func (s *Seeder) Run(ctx context.Context, fixtures []Fixture, reset bool) (*Result, error) {
	res := &Result{}
	if reset {
		n, err := s.repo.DeleteAll(ctx)
		if err != nil {
			return nil, fmt.Errorf("seed: clear postings: %w", err)
		}
		res.Removed = n
		s.logger.Info("cleared existing postings", slog.Int64("removed", n))
	}

	now := s.now().UTC()
	for i, f := range fixtures {
		d := f.Draft
		if d.PublishDate == "" {
			d.PublishDate = now.Format(time.RFC3339)
		}
		if d.LastDate == "" && f.ValidForDays > 0 {
			d.LastDate = now.AddDate(0, 0, f.ValidForDays).Format(time.RFC3339)
		}
		p, err := s.svc.Create(ctx, d)
		if err != nil {
			return res, fmt.Errorf("seed: fixture %d (%q): %w", i, d.Title, err)
		}
		s.logger.Debug("seeded posting", slog.String("id", p.ID), slog.String("title", p.Title))
		res.Inserted = append(res.Inserted, p)
	}
	s.logger.Info("seeded postings", slog.Int("count", len(res.Inserted)))
	return res, nil
}
