package alerts

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := NewRedisClient("redis://" + mr.Addr() + "/0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, "test"), mr
}

// storeFactories runs the shared Store contract against both implementations.
func storeFactories(t *testing.T) map[string]func() Store {
	return map[string]func() Store{
		"memory": func() Store { return NewMemoryStore() },
		"redis": func() Store {
			s, _ := newTestRedisStore(t)
			return s
		},
	}
}

func TestStore_Config(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := factory()
			ctx := context.Background()

			_, err := s.GetConfig(ctx)
			assert.ErrorIs(t, err, ErrNoConfig)

			cfg := Config{
				Emails:     []string{"ops@example.com"},
				Thresholds: Thresholds{Memory: 80, CPU: 70, ResponseTime: 500},
				UpdatedAt:  time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			}
			require.NoError(t, s.SaveConfig(ctx, cfg))

			got, err := s.GetConfig(ctx)
			require.NoError(t, err)
			assert.Equal(t, cfg, *got)
			assert.NoError(t, s.Ping(ctx))
		})
	}
}

func TestStore_History(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := factory()
			ctx := context.Background()
			base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

			empty, err := s.History(ctx, 10)
			require.NoError(t, err)
			assert.Empty(t, empty)

			for i := 0; i < HistoryLimit+5; i++ {
				require.NoError(t, s.Append(ctx, Alert{
					ID:        fmt.Sprintf("a-%d", i),
					Type:      TypeDatabase,
					Timestamp: base.Add(time.Duration(i) * time.Minute),
				}))
			}

			all, err := s.History(ctx, 0)
			require.NoError(t, err)
			assert.Len(t, all, HistoryLimit)
			assert.Equal(t, fmt.Sprintf("a-%d", HistoryLimit+4), all[0].ID, "newest first")

			three, err := s.History(ctx, 3)
			require.NoError(t, err)
			assert.Len(t, three, 3)
		})
	}
}

func TestStore_Resolve(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := factory()
			ctx := context.Background()
			at := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)

			require.NoError(t, s.Append(ctx, Alert{ID: "1", Type: TypeDatabase}))
			require.NoError(t, s.Append(ctx, Alert{ID: "2", Type: TypeMedia}))
			require.NoError(t, s.Append(ctx, Alert{ID: "3", Type: TypeDatabase}))

			n, err := s.Resolve(ctx, TypeDatabase, at)
			require.NoError(t, err)
			assert.Equal(t, 2, n)

			n, err = s.Resolve(ctx, TypeDatabase, at)
			require.NoError(t, err)
			assert.Zero(t, n, "already resolved")

			history, err := s.History(ctx, 0)
			require.NoError(t, err)
			for _, a := range history {
				if a.Type == TypeDatabase {
					assert.True(t, a.Resolved)
					require.NotNil(t, a.ResolvedAt)
					assert.Equal(t, at, *a.ResolvedAt)
				} else {
					assert.False(t, a.Resolved)
					assert.Nil(t, a.ResolvedAt)
				}
			}
		})
	}
}

func TestRedisStore_Keys(t *testing.T) {
	s, mr := newTestRedisStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveConfig(ctx, Config{Emails: []string{"ops@example.com"}}))
	require.NoError(t, s.Append(ctx, Alert{ID: "1"}))

	assert.True(t, mr.Exists("test:alerts:config"))
	assert.True(t, mr.Exists("test:alerts:history"))
}

func TestRedisStore_Unreachable(t *testing.T) {
	s, mr := newTestRedisStore(t)
	mr.Close()

	ctx := context.Background()
	assert.Error(t, s.Ping(ctx))
	_, err := s.GetConfig(ctx)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoConfig)
}

func TestNewRedisClient_InvalidURL(t *testing.T) {
	_, err := NewRedisClient("http://not-redis")
	assert.Error(t, err)
}
