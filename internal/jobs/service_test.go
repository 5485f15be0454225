package jobs

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maauso/jobportal-api/internal/apperr"
)

// mockRepository implements Repository for failure-path tests.
type mockRepository struct {
	mock.Mock
}

func (m *mockRepository) Insert(ctx context.Context, p *Posting) error {
	return m.Called(ctx, p).Error(0)
}

func (m *mockRepository) FindByID(ctx context.Context, id string) (*Posting, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(*Posting)
	return p, args.Error(1)
}

func (m *mockRepository) Update(ctx context.Context, p *Posting) (*Posting, error) {
	args := m.Called(ctx, p)
	out, _ := args.Get(0).(*Posting)
	return out, args.Error(1)
}

func (m *mockRepository) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockRepository) Find(ctx context.Context, f Filter, opts FindOptions) ([]*Posting, error) {
	args := m.Called(ctx, f, opts)
	out, _ := args.Get(0).([]*Posting)
	return out, args.Error(1)
}

func (m *mockRepository) Count(ctx context.Context, f Filter) (int64, error) {
	args := m.Called(ctx, f)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockRepository) IncrementViews(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockRepository) RecordApplication(ctx context.Context, id string) (*Posting, error) {
	args := m.Called(ctx, id)
	out, _ := args.Get(0).(*Posting)
	return out, args.Error(1)
}

func (m *mockRepository) Stats(ctx context.Context) (*Stats, error) {
	args := m.Called(ctx)
	out, _ := args.Get(0).(*Stats)
	return out, args.Error(1)
}

func (m *mockRepository) DeleteAll(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func newTestService(repo Repository) *Service {
	return NewService(repo, nil, WithClock(func() time.Time { return testNow }))
}

func TestNewService(t *testing.T) {
	svc := NewService(NewMemoryRepository(), nil, WithViewTimeout(time.Second), WithViewTimeout(0))
	assert.NotNil(t, svc.logger)
	assert.Equal(t, time.Second, svc.viewTimeout)
}

func TestService_CreateAndGet(t *testing.T) {
	svc := newTestService(NewMemoryRepository())
	ctx := context.Background()

	created, err := svc.Create(ctx, validDraft())
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, StatusActive, created.Status)

	first, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), first.Views)
	svc.Wait()

	second, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), second.Views)
	svc.Wait()
}

func TestService_CreateInvalidDoesNotPersist(t *testing.T) {
	repo := NewMemoryRepository()
	svc := newTestService(repo)

	d := validDraft()
	d.Title = ""
	_, err := svc.Create(context.Background(), d)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.TypeValidation))

	n, _ := repo.Count(context.Background(), Filter{})
	assert.Zero(t, n)
}

func TestService_GetHidesInactive(t *testing.T) {
	svc := newTestService(NewMemoryRepository())
	ctx := context.Background()

	d := validDraft()
	d.Status = string(StatusDraft)
	created, err := svc.Create(ctx, d)
	require.NoError(t, err)

	_, err = svc.Get(ctx, created.ID)
	assert.True(t, apperr.Is(err, apperr.TypeNotFound))

	_, err = svc.Get(ctx, "not-an-id")
	assert.True(t, apperr.Is(err, apperr.TypeNotFound))
}

func TestService_ListPinsActive(t *testing.T) {
	svc := newTestService(NewMemoryRepository())
	ctx := context.Background()

	for i, status := range []Status{StatusActive, StatusActive, StatusClosed, StatusDraft} {
		d := validDraft()
		d.Title = fmt.Sprintf("Job %d", i)
		d.Status = string(status)
		_, err := svc.Create(ctx, d)
		require.NoError(t, err)
	}

	page, err := svc.List(ctx, ListQuery{Status: StatusClosed})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)
	assert.Equal(t, 1, page.TotalPages)
	assert.Equal(t, DefaultLimit, page.Limit)
	for _, p := range page.Items {
		assert.Equal(t, StatusActive, p.Status)
	}

	all, err := svc.AdminList(ctx, ListQuery{})
	require.NoError(t, err)
	assert.Equal(t, int64(4), all.Total)

	closed, err := svc.AdminList(ctx, ListQuery{Status: StatusClosed})
	require.NoError(t, err)
	assert.Equal(t, int64(1), closed.Total)

	_, err = svc.AdminList(ctx, ListQuery{Status: "archived"})
	assert.True(t, apperr.Is(err, apperr.TypeValidation))
}

func TestService_ByEmploymentType(t *testing.T) {
	svc := newTestService(NewMemoryRepository())
	ctx := context.Background()

	d := validDraft()
	d.EmploymentType = string(EmploymentContract)
	_, err := svc.Create(ctx, d)
	require.NoError(t, err)
	_, err = svc.Create(ctx, validDraft())
	require.NoError(t, err)

	page, err := svc.ByEmploymentType(ctx, "Contract", ListQuery{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)

	_, err = svc.ByEmploymentType(ctx, "Gig", ListQuery{})
	require.Error(t, err)
	assert.Contains(t, apperr.FieldsOf(err), "employmentType")
}

func TestService_Popular(t *testing.T) {
	repo := NewMemoryRepository()
	svc := newTestService(repo)
	ctx := context.Background()

	a, _ := svc.Create(ctx, validDraft())
	b, _ := svc.Create(ctx, validDraft())
	require.NoError(t, repo.IncrementViews(ctx, b.ID))

	items, err := svc.Popular(ctx, 0)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, b.ID, items[0].ID)
	assert.Equal(t, a.ID, items[1].ID)
}

func TestService_UpdatePartial(t *testing.T) {
	repo := NewMemoryRepository()
	svc := newTestService(repo)
	ctx := context.Background()

	created, err := svc.Create(ctx, validDraft())
	require.NoError(t, err)
	require.NoError(t, repo.IncrementViews(ctx, created.ID))

	title := "Deputy Director"
	updated, err := svc.Update(ctx, created.ID, Patch{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "Deputy Director", updated.Title)
	assert.Equal(t, created.Organization, updated.Organization)
	assert.Equal(t, created.LastDate, updated.LastDate)
	assert.Equal(t, created.Tags, updated.Tags)
	assert.Equal(t, int64(1), updated.Views)
}

func TestService_UpdateRejectsInvalidMerge(t *testing.T) {
	svc := newTestService(NewMemoryRepository())
	ctx := context.Background()
	created, err := svc.Create(ctx, validDraft())
	require.NoError(t, err)

	empty := ""
	_, err = svc.Update(ctx, created.ID, Patch{Organization: &empty})
	require.Error(t, err)
	assert.Contains(t, apperr.FieldsOf(err), "organization")

	stored, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ministry of Health", stored.Organization)
	svc.Wait()

	_, err = svc.Update(ctx, "missing", Patch{Organization: &empty})
	assert.True(t, apperr.Is(err, apperr.TypeNotFound))
}

func TestService_UpdateClearsOptionalField(t *testing.T) {
	svc := newTestService(NewMemoryRepository())
	ctx := context.Background()
	d := validDraft()
	d.SalaryMin = floatPtr(1000)
	d.SalaryMax = floatPtr(2000)
	created, err := svc.Create(ctx, d)
	require.NoError(t, err)
	require.NotNil(t, created.SalaryMin)

	var patch Patch
	patch.Clear("salaryMin")
	updated, err := svc.Update(ctx, created.ID, patch)
	require.NoError(t, err)
	assert.Nil(t, updated.SalaryMin)
	require.NotNil(t, updated.SalaryMax)
	assert.Equal(t, 2000.0, *updated.SalaryMax)
}

func TestService_LinkImage(t *testing.T) {
	svc := newTestService(NewMemoryRepository())
	ctx := context.Background()
	created, err := svc.Create(ctx, validDraft())
	require.NoError(t, err)

	linked, err := svc.LinkImage(ctx, created.ID, "https://cdn.example.com/job-ads/a.png")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/job-ads/a.png", linked.ImageURL)

	_, err = svc.LinkImage(ctx, created.ID, "not a url")
	assert.Contains(t, apperr.FieldsOf(err), "imageUrl")
}

func TestService_DeleteIsTerminal(t *testing.T) {
	svc := newTestService(NewMemoryRepository())
	ctx := context.Background()
	created, err := svc.Create(ctx, validDraft())
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, created.ID))
	_, err = svc.Get(ctx, created.ID)
	assert.True(t, apperr.Is(err, apperr.TypeNotFound))
	assert.True(t, apperr.Is(svc.Delete(ctx, created.ID), apperr.TypeNotFound))
}

func TestService_Apply(t *testing.T) {
	svc := newTestService(NewMemoryRepository())
	ctx := context.Background()
	d := validDraft()
	d.ApplyURL = "https://careers.example.com/apply/1"
	created, err := svc.Create(ctx, d)
	require.NoError(t, err)

	p, err := svc.Apply(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.Applications)
	assert.Equal(t, d.ApplyURL, p.ApplyURL)

	_, err = svc.Apply(ctx, "missing")
	assert.True(t, apperr.Is(err, apperr.TypeNotFound))
}

func TestService_StoreFailures(t *testing.T) {
	storeErr := errors.New("connection refused")
	ctx := context.Background()

	t.Run("list", func(t *testing.T) {
		repo := new(mockRepository)
		repo.On("Count", mock.Anything, mock.Anything).Return(int64(0), storeErr)
		repo.On("Find", mock.Anything, mock.Anything, mock.Anything).Return([]*Posting{}, nil).Maybe()

		_, err := newTestService(repo).List(ctx, ListQuery{})
		assert.True(t, apperr.Is(err, apperr.TypeStore))
		assert.ErrorIs(t, err, storeErr)
	})

	t.Run("create", func(t *testing.T) {
		repo := new(mockRepository)
		repo.On("Insert", mock.Anything, mock.Anything).Return(storeErr)

		_, err := newTestService(repo).Create(ctx, validDraft())
		assert.True(t, apperr.Is(err, apperr.TypeStore))
		repo.AssertExpectations(t)
	})

	t.Run("view increment failure is not surfaced", func(t *testing.T) {
		p, err := Validate(validDraft(), testNow)
		require.NoError(t, err)
		p.ID = "abc"

		repo := new(mockRepository)
		repo.On("FindByID", mock.Anything, "abc").Return(p, nil)
		repo.On("IncrementViews", mock.Anything, "abc").Return(storeErr)

		svc := newTestService(repo)
		got, err := svc.Get(ctx, "abc")
		require.NoError(t, err)
		assert.Equal(t, "abc", got.ID)
		svc.Wait()
		repo.AssertExpectations(t)
	})

	t.Run("stats", func(t *testing.T) {
		repo := new(mockRepository)
		repo.On("Stats", mock.Anything).Return(nil, storeErr)

		_, err := newTestService(repo).Stats(ctx)
		assert.True(t, apperr.Is(err, apperr.TypeStore))
	})
}

func TestService_ViewIncrementOutlivesRequest(t *testing.T) {
	svc := newTestService(NewMemoryRepository())
	created, err := svc.Create(context.Background(), validDraft())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	_, err = svc.Get(ctx, created.ID)
	require.NoError(t, err)
	cancel()
	svc.Wait()

	p, err := svc.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.Views)
	svc.Wait()
}
