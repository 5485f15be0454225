package jobs

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedPosting(t *testing.T, repo Repository, mutate func(*Draft)) *Posting {
	t.Helper()
	d := validDraft()
	if mutate != nil {
		mutate(&d)
	}
	p, err := Validate(d, testNow)
	require.NoError(t, err)
	require.NoError(t, repo.Insert(context.Background(), p))
	return p
}

func TestMemoryRepository_InsertAndFind(t *testing.T) {
	repo := NewMemoryRepository()
	repo.now = func() time.Time { return testNow }
	ctx := context.Background()

	p := seedPosting(t, repo, nil)
	require.NotEmpty(t, p.ID)
	assert.Equal(t, testNow, p.CreatedAt)

	found, err := repo.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Title, found.Title)

	_, err = repo.FindByID(ctx, "nonexistent")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryRepository_FindByID_ReturnsClone(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	p := seedPosting(t, repo, nil)

	found, _ := repo.FindByID(ctx, p.ID)
	found.Title = "changed"
	found.Tags[0] = "changed"

	original, _ := repo.FindByID(ctx, p.ID)
	assert.Equal(t, "Assistant Director", original.Title)
	assert.Equal(t, "health", original.Tags[0])
}

func TestMemoryRepository_UpdateKeepsCounters(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	p := seedPosting(t, repo, nil)

	require.NoError(t, repo.IncrementViews(ctx, p.ID))
	_, err := repo.RecordApplication(ctx, p.ID)
	require.NoError(t, err)

	next := p.Clone()
	next.Title = "Deputy Director"
	next.Views = 0
	next.Applications = 0
	next.CreatedAt = time.Time{}

	updated, err := repo.Update(ctx, next)
	require.NoError(t, err)
	assert.Equal(t, "Deputy Director", updated.Title)
	assert.Equal(t, int64(1), updated.Views)
	assert.Equal(t, int64(1), updated.Applications)
	assert.Equal(t, p.CreatedAt, updated.CreatedAt)

	next.ID = "missing"
	_, err = repo.Update(ctx, next)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryRepository_Delete(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	p := seedPosting(t, repo, nil)

	require.NoError(t, repo.Delete(ctx, p.ID))
	_, err := repo.FindByID(ctx, p.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, p.ID), ErrNotFound)
}

func TestMemoryRepository_FindFilters(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	seedPosting(t, repo, func(d *Draft) {
		d.Title = "Software Engineer"
		d.Category = string(CategoryIT)
		d.Location = "Colombo 03"
		d.EmploymentType = string(EmploymentFullTime)
	})
	seedPosting(t, repo, func(d *Draft) {
		d.Title = "Bank Teller"
		d.Category = string(CategoryBanking)
		d.Location = "Kandy"
		d.Source = "Sunday Times"
	})
	seedPosting(t, repo, func(d *Draft) {
		d.Title = "Nurse"
		d.Category = string(CategoryHealthcare)
		d.Location = "colombo"
		d.Status = string(StatusClosed)
	})

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{name: "category exact", filter: Filter{Category: string(CategoryBanking)}, want: []string{"Bank Teller"}},
		{name: "location substring case-insensitive", filter: Filter{Location: "COLOMBO"}, want: []string{"Software Engineer", "Nurse"}},
		{name: "source substring", filter: Filter{Source: "sunday"}, want: []string{"Bank Teller"}},
		{name: "employment type", filter: Filter{EmploymentType: "Full-time"}, want: []string{"Software Engineer"}},
		{name: "status", filter: Filter{Status: StatusActive, Location: "colombo"}, want: []string{"Software Engineer"}},
		{name: "keyword any term", filter: Filter{Keyword: "teller nurse"}, want: []string{"Bank Teller", "Nurse"}},
		{name: "keyword in tags", filter: Filter{Keyword: "GOVERNMENT", Category: string(CategoryIT)}, want: []string{"Software Engineer"}},
		{name: "no match", filter: Filter{Category: string(CategoryOther)}, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := repo.Find(ctx, tt.filter, FindOptions{})
			require.NoError(t, err)
			titles := make([]string, 0, len(items))
			for _, p := range items {
				titles = append(titles, p.Title)
			}
			assert.ElementsMatch(t, tt.want, titles)

			n, err := repo.Count(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, int64(len(tt.want)), n)
		})
	}
}

func TestMemoryRepository_FindPagesWithoutOverlap(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	for i := 0; i < 25; i++ {
		seedPosting(t, repo, func(d *Draft) {
			d.Title = fmt.Sprintf("Job %02d", i)
			d.PublishDate = testNow.AddDate(0, 0, -(i % 3)).Format(time.RFC3339)
		})
	}

	seen := make(map[string]bool)
	for page := 0; page < 3; page++ {
		items, err := repo.Find(ctx, Filter{}, FindOptions{Skip: page * 10, Limit: 10})
		require.NoError(t, err)
		for i := 1; i < len(items); i++ {
			assert.False(t, items[i].PublishDate.After(items[i-1].PublishDate), "page must be sorted newest first")
		}
		for _, p := range items {
			assert.False(t, seen[p.ID], "duplicate %s", p.ID)
			seen[p.ID] = true
		}
	}
	assert.Len(t, seen, 25)

	items, err := repo.Find(ctx, Filter{}, FindOptions{Skip: 100, Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestMemoryRepository_FindNegativeSkip(t *testing.T) {
	repo := NewMemoryRepository()
	seedPosting(t, repo, nil)
	seedPosting(t, repo, nil)

	items, err := repo.Find(context.Background(), Filter{}, FindOptions{Skip: -5, Limit: 1})
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestMemoryRepository_SortPopular(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	a := seedPosting(t, repo, func(d *Draft) { d.Title = "A" })
	b := seedPosting(t, repo, func(d *Draft) { d.Title = "B" })
	c := seedPosting(t, repo, func(d *Draft) { d.Title = "C" })

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.IncrementViews(ctx, b.ID))
	}
	require.NoError(t, repo.IncrementViews(ctx, a.ID))
	require.NoError(t, repo.IncrementViews(ctx, c.ID))
	_, err := repo.RecordApplication(ctx, c.ID)
	require.NoError(t, err)

	items, err := repo.Find(ctx, Filter{}, FindOptions{Limit: 2, Sort: SortPopular})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "B", items[0].Title)
	assert.Equal(t, "C", items[1].Title)
}

func TestMemoryRepository_IncrementViewsConcurrent(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	p := seedPosting(t, repo, nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = repo.IncrementViews(ctx, p.ID)
		}()
	}
	wg.Wait()

	found, err := repo.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(50), found.Views)
	assert.ErrorIs(t, repo.IncrementViews(ctx, "missing"), ErrNotFound)
}

func TestMemoryRepository_RecordApplicationInactive(t *testing.T) {
	repo := NewMemoryRepository()
	p := seedPosting(t, repo, func(d *Draft) { d.Status = string(StatusExpired) })

	_, err := repo.RecordApplication(context.Background(), p.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryRepository_Stats(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	empty, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, empty.Overview.TotalJobs)
	assert.NotNil(t, empty.TopCategories)
	assert.NotNil(t, empty.RecentJobs)

	it := seedPosting(t, repo, func(d *Draft) { d.Category = string(CategoryIT); d.Location = "Colombo" })
	seedPosting(t, repo, func(d *Draft) { d.Category = string(CategoryIT); d.Location = "Kandy" })
	seedPosting(t, repo, func(d *Draft) {
		d.Category = string(CategoryBanking)
		d.Location = "Colombo"
		d.Status = string(StatusClosed)
	})
	require.NoError(t, repo.IncrementViews(ctx, it.ID))
	require.NoError(t, repo.IncrementViews(ctx, it.ID))

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Overview.TotalJobs)
	assert.Equal(t, int64(2), stats.Overview.TotalViews)
	assert.InDelta(t, 2.0/3.0, stats.Overview.AvgViews, 1e-9)

	require.Len(t, stats.TopCategories, 2)
	assert.Equal(t, GroupStat{Name: string(CategoryIT), Count: 2, TotalViews: 2}, stats.TopCategories[0])
	assert.Equal(t, "Colombo", stats.TopLocations[0].Name)
	assert.Len(t, stats.RecentJobs, 2, "closed postings are not recent jobs")
}

func TestMemoryRepository_DeleteAll(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	seedPosting(t, repo, nil)
	seedPosting(t, repo, nil)

	n, err := repo.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	count, _ := repo.Count(ctx, Filter{})
	assert.Zero(t, count)
}
