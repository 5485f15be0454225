package jobs

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Compile-time check that MemoryRepository implements Repository.
var _ Repository = (*MemoryRepository)(nil)

// MemoryRepository is an in-memory implementation of Repository.
// It uses a map with RWMutex for thread-safe access.
// Suitable for development and testing; use MongoRepository in production.
// Keyword search approximates a text index: a posting matches when any
// keyword term occurs, case-insensitively, in one of the indexed fields.
type MemoryRepository struct {
	mu    sync.RWMutex
	items map[string]*Posting
	now   func() time.Time
}

// NewMemoryRepository creates a new in-memory posting repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		items: make(map[string]*Posting),
		now:   time.Now,
	}
}

// Insert stores a clone of p under a new ObjectID.
func (r *MemoryRepository) Insert(_ context.Context, p *Posting) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now().UTC().Truncate(time.Millisecond)
	p.ID = bson.NewObjectID().Hex()
	p.CreatedAt = now
	p.UpdatedAt = now
	r.items[p.ID] = p.Clone()
	return nil
}

// FindByID returns a clone of the stored posting.
func (r *MemoryRepository) FindByID(_ context.Context, id string) (*Posting, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return p.Clone(), nil
}

// Update replaces the editable fields, keeping counters and createdAt.
func (r *MemoryRepository) Update(_ context.Context, p *Posting) (*Posting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	old, ok := r.items[p.ID]
	if !ok {
		return nil, ErrNotFound
	}
	next := p.Clone()
	next.Views = old.Views
	next.Applications = old.Applications
	next.CreatedAt = old.CreatedAt
	next.UpdatedAt = r.now().UTC().Truncate(time.Millisecond)
	r.items[p.ID] = next
	return next.Clone(), nil
}

// Delete removes a posting.
func (r *MemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return ErrNotFound
	}
	delete(r.items, id)
	return nil
}

// Find filters, sorts and pages the stored postings.
func (r *MemoryRepository) Find(_ context.Context, f Filter, opts FindOptions) ([]*Posting, error) {
	r.mu.RLock()
	matched := r.match(f)
	r.mu.RUnlock()

	sortPostings(matched, opts.Sort)

	if opts.Skip < 0 {
		opts.Skip = 0
	}
	if opts.Skip >= len(matched) {
		return []*Posting{}, nil
	}
	matched = matched[opts.Skip:]
	if opts.Limit > 0 && opts.Limit < len(matched) {
		matched = matched[:opts.Limit]
	}
	return matched, nil
}

// Count returns the number of postings matching f.
func (r *MemoryRepository) Count(_ context.Context, f Filter) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.match(f))), nil
}

// IncrementViews adds one to the views counter under the write lock.
func (r *MemoryRepository) IncrementViews(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.items[id]
	if !ok {
		return ErrNotFound
	}
	p.Views++
	return nil
}

// RecordApplication adds one to the applications counter of an active posting.
func (r *MemoryRepository) RecordApplication(_ context.Context, id string) (*Posting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.items[id]
	if !ok || !p.IsActive() {
		return nil, ErrNotFound
	}
	p.Applications++
	return p.Clone(), nil
}

// Stats computes the same figures as the MongoDB aggregation pipelines.
func (r *MemoryRepository) Stats(_ context.Context) (*Stats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := &Stats{
		TopCategories: []GroupStat{},
		TopLocations:  []GroupStat{},
		RecentJobs:    []RecentJob{},
	}
	categories := make(map[string]*GroupStat)
	locations := make(map[string]*GroupStat)
	for _, p := range r.items {
		stats.Overview.TotalJobs++
		stats.Overview.TotalViews += p.Views
		stats.Overview.TotalApplications += p.Applications
		addGroup(categories, string(p.Category), p.Views)
		addGroup(locations, p.Location, p.Views)
	}
	if n := stats.Overview.TotalJobs; n > 0 {
		stats.Overview.AvgViews = float64(stats.Overview.TotalViews) / float64(n)
		stats.Overview.AvgApplications = float64(stats.Overview.TotalApplications) / float64(n)
	}
	stats.TopCategories = topGroups(categories)
	stats.TopLocations = topGroups(locations)

	active := r.match(Filter{Status: StatusActive})
	sortPostings(active, SortNewest)
	for i, p := range active {
		if i == recentJobsLimit {
			break
		}
		stats.RecentJobs = append(stats.RecentJobs, RecentJob{
			ID:           p.ID,
			Title:        p.Title,
			Organization: p.Organization,
			Location:     p.Location,
			PublishDate:  p.PublishDate,
			Views:        p.Views,
		})
	}
	return stats, nil
}

// DeleteAll removes every posting.
func (r *MemoryRepository) DeleteAll(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := int64(len(r.items))
	r.items = make(map[string]*Posting)
	return n, nil
}

// match returns clones of the postings satisfying f. Callers hold the lock.
func (r *MemoryRepository) match(f Filter) []*Posting {
	terms := strings.Fields(strings.ToLower(f.Keyword))
	out := make([]*Posting, 0, len(r.items))
	for _, p := range r.items {
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		if f.Category != "" && string(p.Category) != f.Category {
			continue
		}
		if f.EmploymentType != "" && string(p.EmploymentType) != f.EmploymentType {
			continue
		}
		if f.Location != "" && !containsFold(p.Location, f.Location) {
			continue
		}
		if f.Source != "" && !containsFold(p.Source, f.Source) {
			continue
		}
		if len(terms) > 0 && !matchesAnyTerm(p, terms) {
			continue
		}
		out = append(out, p.Clone())
	}
	return out
}

func matchesAnyTerm(p *Posting, terms []string) bool {
	text := strings.ToLower(strings.Join([]string{
		p.Title, p.Organization, p.Description, p.Requirements, p.Benefits,
		strings.Join(p.Tags, " "),
	}, " "))
	for _, t := range terms {
		if strings.Contains(text, t) {
			return true
		}
	}
	return false
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func sortPostings(ps []*Posting, order SortOrder) {
	sort.SliceStable(ps, func(i, j int) bool {
		a, b := ps[i], ps[j]
		if order == SortPopular {
			if a.Views != b.Views {
				return a.Views > b.Views
			}
			if a.Applications != b.Applications {
				return a.Applications > b.Applications
			}
		}
		if !a.PublishDate.Equal(b.PublishDate) {
			return a.PublishDate.After(b.PublishDate)
		}
		return a.ID > b.ID
	})
}

func addGroup(groups map[string]*GroupStat, name string, views int64) {
	g, ok := groups[name]
	if !ok {
		g = &GroupStat{Name: name}
		groups[name] = g
	}
	g.Count++
	g.TotalViews += views
}

func topGroups(groups map[string]*GroupStat) []GroupStat {
	out := make([]GroupStat, 0, len(groups))
	for _, g := range groups {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > topGroupsLimit {
		out = out[:topGroupsLimit]
	}
	return out
}
