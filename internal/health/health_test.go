package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maauso/jobportal-api/internal/alerts"
)

type stubProbe struct {
	latency time.Duration
	err     error
}

func (s stubProbe) Ping(context.Context) (time.Duration, error) {
	return s.latency, s.err
}

type stubPinger struct {
	err error
}

func (s stubPinger) Ping(context.Context) error {
	return s.err
}

type mockAlerter struct {
	mock.Mock
}

func (m *mockAlerter) Raise(ctx context.Context, alertType, message string) bool {
	return m.Called(ctx, alertType, message).Bool(0)
}

func (m *mockAlerter) Resolve(ctx context.Context, alertType string) {
	m.Called(ctx, alertType)
}

func (m *mockAlerter) Thresholds(ctx context.Context) alerts.Thresholds {
	return m.Called(ctx).Get(0).(alerts.Thresholds)
}

func TestChecker_Healthy(t *testing.T) {
	c := NewChecker([]Dependency{
		{Name: "mongodb", AlertType: alerts.TypeDatabase, Critical: true, Probe: stubProbe{latency: 3 * time.Millisecond}},
		{Name: "media", AlertType: alerts.TypeMedia, Probe: Timed(stubPinger{})},
		{Name: "redis", AlertType: alerts.TypeCache},
	}, nil, WithEnvironment("test", false))

	report := c.Check(context.Background())

	assert.Equal(t, StatusHealthy, report.Status)
	mongo := report.Services["mongodb"]
	assert.Equal(t, StateConnected, mongo.Status)
	require.NotNil(t, mongo.Latency)
	assert.Equal(t, int64(3), *mongo.Latency)
	assert.Equal(t, StateConnected, report.Services["media"].Status)
	assert.Equal(t, StateUnconfigured, report.Services["redis"].Status)
	assert.False(t, report.Services["redis"].Configured)

	assert.Equal(t, "test", report.System.Env)
	assert.Positive(t, report.System.Goroutines)
	assert.NotEmpty(t, report.System.GoVersion)
}

func TestChecker_Degraded(t *testing.T) {
	tests := []struct {
		name string
		deps []Dependency
	}{
		{
			name: "critical failure",
			deps: []Dependency{{Name: "mongodb", Critical: true, Probe: stubProbe{err: errors.New("no reachable servers")}}},
		},
		{
			name: "configured optional failure",
			deps: []Dependency{
				{Name: "mongodb", Critical: true, Probe: stubProbe{}},
				{Name: "media", Probe: Timed(stubPinger{err: errors.New("NoSuchBucket")})},
			},
		},
		{
			name: "critical unconfigured",
			deps: []Dependency{{Name: "mongodb", Critical: true}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := NewChecker(tt.deps, nil).Check(context.Background())
			assert.Equal(t, StatusDegraded, report.Status)
		})
	}
}

func TestChecker_ErrorExposure(t *testing.T) {
	deps := []Dependency{{Name: "mongodb", Critical: true, Probe: stubProbe{err: errors.New("auth failed for user admin")}}}

	prod := NewChecker(deps, nil).Check(context.Background())
	assert.Equal(t, "Connection error", prod.Services["mongodb"].Error)

	dev := NewChecker(deps, nil, WithEnvironment("development", true)).Check(context.Background())
	assert.Equal(t, "auth failed for user admin", dev.Services["mongodb"].Error)
}

func TestChecker_RaisesAndResolvesAlerts(t *testing.T) {
	a := new(mockAlerter)
	a.On("Thresholds", mock.Anything).Return(alerts.Thresholds{Memory: 101, ResponseTime: 10})
	a.On("Raise", mock.Anything, alerts.TypeMedia, mock.Anything).Return(true).Once()
	a.On("Raise", mock.Anything, alerts.TypeLatency, mock.Anything).Return(true).Once()
	a.On("Resolve", mock.Anything, alerts.TypeDatabase).Once()
	a.On("Resolve", mock.Anything, alerts.TypeMemory).Once()

	c := NewChecker([]Dependency{
		{Name: "mongodb", AlertType: alerts.TypeDatabase, Critical: true, Probe: stubProbe{latency: 50 * time.Millisecond}},
		{Name: "media", AlertType: alerts.TypeMedia, Probe: Timed(stubPinger{err: errors.New("denied")})},
		{Name: "redis", AlertType: alerts.TypeCache},
	}, nil, WithAlerter(a))

	ctx, cancel := context.WithCancel(context.Background())
	report := c.Check(ctx)
	cancel()
	c.Wait()

	assert.Equal(t, StatusDegraded, report.Status)
	a.AssertExpectations(t)
	a.AssertNotCalled(t, "Raise", mock.Anything, alerts.TypeCache, mock.Anything)
}

func TestTimed(t *testing.T) {
	lat, err := Timed(stubPinger{}).Ping(context.Background())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, lat, time.Duration(0))

	_, err = Timed(stubPinger{err: errors.New("x")}).Ping(context.Background())
	assert.Error(t, err)
}
