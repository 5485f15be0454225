package jobs

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a posting cannot be found by ID.
var ErrNotFound = errors.New("job not found")

// SortOrder selects the ordering of a Find.
type SortOrder int

const (
	// SortNewest orders by publishDate descending.
	SortNewest SortOrder = iota
	// SortPopular orders by views, then applications, descending.
	SortPopular
)

// Filter is the store predicate. Empty fields impose no constraint.
type Filter struct {
	Keyword        string
	Category       string
	EmploymentType string
	Location       string
	Source         string
	Status         Status
}

// FindOptions controls paging and ordering of a Find.
type FindOptions struct {
	Skip  int
	Limit int
	Sort  SortOrder
}

// Repository defines the interface for posting persistence.
// It acts as a port in the hexagonal architecture pattern.
type Repository interface {
	// Insert assigns an ID and timestamps to p and persists it.
	Insert(ctx context.Context, p *Posting) error

	// FindByID retrieves a posting by its identifier.
	// Returns ErrNotFound if it does not exist or the ID is malformed.
	FindByID(ctx context.Context, id string) (*Posting, error)

	// Update overwrites the editable fields of the posting with p.ID and
	// returns the stored result. Counters and createdAt are never overwritten.
	// Returns ErrNotFound if the posting does not exist.
	Update(ctx context.Context, p *Posting) (*Posting, error)

	// Delete permanently removes a posting.
	// Returns ErrNotFound if the posting does not exist.
	Delete(ctx context.Context, id string) error

	// Find returns the postings matching f in the requested order and page.
	Find(ctx context.Context, f Filter, opts FindOptions) ([]*Posting, error)

	// Count returns the number of postings matching f.
	Count(ctx context.Context, f Filter) (int64, error)

	// IncrementViews atomically adds one to the posting's views counter.
	IncrementViews(ctx context.Context, id string) error

	// RecordApplication atomically adds one to the applications counter of an
	// active posting and returns it. Returns ErrNotFound for missing or
	// inactive postings.
	RecordApplication(ctx context.Context, id string) (*Posting, error)

	// Stats computes the aggregate statistics.
	Stats(ctx context.Context) (*Stats, error)

	// DeleteAll removes every posting and reports how many were removed.
	DeleteAll(ctx context.Context) (int64, error)
}
