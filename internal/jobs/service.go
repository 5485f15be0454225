package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/maauso/jobportal-api/internal/apperr"
)

const (
	defaultViewTimeout  = 5 * time.Second
	defaultPopularLimit = 10
)

// Service implements the job portal use cases on top of a Repository.
type Service struct {
	repo        Repository
	logger      *slog.Logger
	tracer      trace.Tracer
	now         func() time.Time
	viewTimeout time.Duration
	background  sync.WaitGroup
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithClock overrides the time source used for defaults and validation.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// WithViewTimeout bounds the detached view-counter update.
func WithViewTimeout(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.viewTimeout = d
		}
	}
}

// NewService creates a new Service.
func NewService(repo Repository, logger *slog.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		repo:        repo,
		logger:      logger,
		tracer:      otel.Tracer("github.com/maauso/jobportal-api/internal/jobs"),
		now:         time.Now,
		viewTimeout: defaultViewTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Wait blocks until every background view increment has finished.
func (s *Service) Wait() {
	s.background.Wait()
}

// List returns a page of active postings matching q.
func (s *Service) List(ctx context.Context, q ListQuery) (*Page, error) {
	q = q.Normalize()
	q.Status = StatusActive
	return s.list(ctx, "jobs.List", q, SortNewest)
}

// AdminList returns a page of postings in any status. q.Status narrows it.
func (s *Service) AdminList(ctx context.Context, q ListQuery) (*Page, error) {
	q = q.Normalize()
	if q.Status != "" && !q.Status.IsValid() {
		return nil, apperr.Validation(map[string]string{
			"status": "status must be one of: " + joinValues(Statuses),
		})
	}
	return s.list(ctx, "jobs.AdminList", q, SortNewest)
}

// ByEmploymentType lists active postings of one employment type.
func (s *Service) ByEmploymentType(ctx context.Context, t string, q ListQuery) (*Page, error) {
	if !EmploymentType(t).IsValid() {
		return nil, apperr.Validation(map[string]string{
			"employmentType": "employmentType must be one of: " + joinValues(EmploymentTypes),
		})
	}
	q = q.Normalize()
	q.EmploymentType = t
	q.Status = StatusActive
	return s.list(ctx, "jobs.ByEmploymentType", q, SortNewest)
}

func (s *Service) list(ctx context.Context, op string, q ListQuery, order SortOrder) (*Page, error) {
	ctx, span := s.tracer.Start(ctx, op, trace.WithAttributes(
		attribute.Int("page", q.Page),
		attribute.Int("limit", q.Limit),
		attribute.String("keyword", q.Keyword),
	))
	defer span.End()

	filter := q.Filter()
	var (
		items []*Posting
		total int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.repo.Count(gctx, filter)
		total = n
		return err
	})
	g.Go(func() error {
		found, err := s.repo.Find(gctx, filter, FindOptions{Skip: q.Skip(), Limit: q.Limit, Sort: order})
		items = found
		return err
	})
	if err := g.Wait(); err != nil {
		s.fail(span, err)
		return nil, apperr.Store("failed to list jobs", err)
	}
	span.SetAttributes(attribute.Int64("total", total))
	return newPage(items, q, total), nil
}

// Get returns an active posting and counts the view in the background.
// The response carries the counter as it was before this view.
func (s *Service) Get(ctx context.Context, id string) (*Posting, error) {
	ctx, span := s.tracer.Start(ctx, "jobs.Get", trace.WithAttributes(attribute.String("job_id", id)))
	defer span.End()

	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapError(span, "failed to fetch job", err)
	}
	if !p.IsActive() {
		return nil, apperr.NotFound("job not found")
	}

	s.background.Add(1)
	go func() {
		defer s.background.Done()
		vctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.viewTimeout)
		defer cancel()
		if err := s.repo.IncrementViews(vctx, id); err != nil {
			s.logger.Warn("failed to increment views",
				slog.String("job_id", id),
				slog.String("error", err.Error()),
			)
		}
	}()

	return p, nil
}

// Popular returns the most viewed active postings.
func (s *Service) Popular(ctx context.Context, limit int) ([]*Posting, error) {
	ctx, span := s.tracer.Start(ctx, "jobs.Popular")
	defer span.End()

	if limit <= 0 {
		limit = defaultPopularLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	items, err := s.repo.Find(ctx, Filter{Status: StatusActive}, FindOptions{Limit: limit, Sort: SortPopular})
	if err != nil {
		s.fail(span, err)
		return nil, apperr.Store("failed to fetch popular jobs", err)
	}
	if items == nil {
		items = []*Posting{}
	}
	return items, nil
}

// Stats returns aggregate statistics across every posting.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	ctx, span := s.tracer.Start(ctx, "jobs.Stats")
	defer span.End()

	stats, err := s.repo.Stats(ctx)
	if err != nil {
		s.fail(span, err)
		return nil, apperr.Store("failed to compute job statistics", err)
	}
	return stats, nil
}

// Create validates d and persists it as a new posting.
func (s *Service) Create(ctx context.Context, d Draft) (*Posting, error) {
	ctx, span := s.tracer.Start(ctx, "jobs.Create")
	defer span.End()

	p, err := Validate(d, s.now())
	if err != nil {
		s.logger.Info("rejected job create", slog.String("error", err.Error()))
		return nil, err
	}
	if err := s.repo.Insert(ctx, p); err != nil {
		s.fail(span, err)
		s.logger.Error("failed to create job",
			slog.String("title", p.Title),
			slog.String("error", err.Error()),
		)
		return nil, apperr.Store("failed to create job", err)
	}
	span.SetAttributes(attribute.String("job_id", p.ID))
	s.logger.Info("job created",
		slog.String("job_id", p.ID),
		slog.String("title", p.Title),
		slog.String("category", string(p.Category)),
	)
	return p, nil
}

// Update applies patch to the stored posting, validates the merged result
// and persists it. Counters and createdAt are never changed.
func (s *Service) Update(ctx context.Context, id string, patch Patch) (*Posting, error) {
	ctx, span := s.tracer.Start(ctx, "jobs.Update", trace.WithAttributes(attribute.String("job_id", id)))
	defer span.End()

	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapError(span, "failed to fetch job", err)
	}

	draft := DraftFrom(current)
	patch.Apply(&draft)
	next, err := Validate(draft, s.now())
	if err != nil {
		s.logger.Info("rejected job update",
			slog.String("job_id", id),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	next.ID = current.ID

	updated, err := s.repo.Update(ctx, next)
	if err != nil {
		s.logger.Error("failed to update job",
			slog.String("job_id", id),
			slog.String("error", err.Error()),
		)
		return nil, s.mapError(span, "failed to update job", err)
	}
	s.logger.Info("job updated", slog.String("job_id", id))
	return updated, nil
}

// LinkImage sets the posting's imageUrl through the update path.
func (s *Service) LinkImage(ctx context.Context, id, imageURL string) (*Posting, error) {
	return s.Update(ctx, id, Patch{ImageURL: &imageURL})
}

// Delete permanently removes a posting.
func (s *Service) Delete(ctx context.Context, id string) error {
	ctx, span := s.tracer.Start(ctx, "jobs.Delete", trace.WithAttributes(attribute.String("job_id", id)))
	defer span.End()

	if err := s.repo.Delete(ctx, id); err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Error("failed to delete job",
				slog.String("job_id", id),
				slog.String("error", err.Error()),
			)
		}
		return s.mapError(span, "failed to delete job", err)
	}
	s.logger.Info("job deleted", slog.String("job_id", id))
	return nil
}

// Apply counts an application on an active posting and returns it so the
// caller can redirect to its applyUrl.
func (s *Service) Apply(ctx context.Context, id string) (*Posting, error) {
	ctx, span := s.tracer.Start(ctx, "jobs.Apply", trace.WithAttributes(attribute.String("job_id", id)))
	defer span.End()

	p, err := s.repo.RecordApplication(ctx, id)
	if err != nil {
		return nil, s.mapError(span, "failed to record application", err)
	}
	s.logger.Info("job application recorded",
		slog.String("job_id", id),
		slog.Int64("applications", p.Applications),
	)
	return p, nil
}

func (s *Service) mapError(span trace.Span, msg string, err error) error {
	if errors.Is(err, ErrNotFound) {
		return apperr.NotFound("job not found")
	}
	s.fail(span, err)
	return apperr.Store(msg, err)
}

func (s *Service) fail(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
