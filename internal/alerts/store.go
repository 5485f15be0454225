package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// HistoryLimit is the number of alerts kept in the history.
const HistoryLimit = 100

// Store persists the alert configuration and history.
type Store interface {
	// GetConfig returns the saved configuration or ErrNoConfig.
	GetConfig(ctx context.Context) (*Config, error)
	// SaveConfig replaces the configuration.
	SaveConfig(ctx context.Context, cfg Config) error
	// Append adds an alert to the front of the history, trimming it to HistoryLimit.
	Append(ctx context.Context, a Alert) error
	// History returns up to limit alerts, newest first.
	History(ctx context.Context, limit int) ([]Alert, error)
	// Resolve marks every unresolved alert of alertType as resolved at and
	// reports how many changed.
	Resolve(ctx context.Context, alertType string, at time.Time) (int, error)
	// Ping checks the backing store is reachable.
	Ping(ctx context.Context) error
}

// Compile-time checks.
var (
	_ Store = (*RedisStore)(nil)
	_ Store = (*MemoryStore)(nil)
)

// RedisStore keeps the configuration as a JSON string and the history as a
// capped list.
type RedisStore struct {
	client     *redis.Client
	configKey  string
	historyKey string
}

// NewRedisStore creates a store using keys under prefix.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "jobportal"
	}
	return &RedisStore{
		client:     client,
		configKey:  prefix + ":alerts:config",
		historyKey: prefix + ":alerts:history",
	}
}

// NewRedisClient parses a redis:// URL into a client.
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

func (s *RedisStore) GetConfig(ctx context.Context) (*Config, error) {
	raw, err := s.client.Get(ctx, s.configKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNoConfig
		}
		return nil, fmt.Errorf("redis get %s: %w", s.configKey, err)
	}
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("decode alert config: %w", err)
	}
	return &cfg, nil
}

func (s *RedisStore) SaveConfig(ctx context.Context, cfg Config) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode alert config: %w", err)
	}
	if err := s.client.Set(ctx, s.configKey, raw, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", s.configKey, err)
	}
	return nil
}

func (s *RedisStore) Append(ctx context.Context, a Alert) error {
	raw, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode alert: %w", err)
	}
	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.LPush(ctx, s.historyKey, raw)
		p.LTrim(ctx, s.historyKey, 0, HistoryLimit-1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis append alert: %w", err)
	}
	return nil
}

func (s *RedisStore) History(ctx context.Context, limit int) ([]Alert, error) {
	if limit <= 0 || limit > HistoryLimit {
		limit = HistoryLimit
	}
	rows, err := s.client.LRange(ctx, s.historyKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lrange %s: %w", s.historyKey, err)
	}
	out := make([]Alert, 0, len(rows))
	for _, row := range rows {
		var a Alert
		if err := json.Unmarshal([]byte(row), &a); err != nil {
			return nil, fmt.Errorf("decode alert: %w", err)
		}
		out = append(out, a)
	}
	return out, nil
}

// Resolve rewrites matching list entries in place with LSET.
func (s *RedisStore) Resolve(ctx context.Context, alertType string, at time.Time) (int, error) {
	rows, err := s.client.LRange(ctx, s.historyKey, 0, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("redis lrange %s: %w", s.historyKey, err)
	}
	changed := 0
	_, err = s.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, row := range rows {
			var a Alert
			if err := json.Unmarshal([]byte(row), &a); err != nil {
				return fmt.Errorf("decode alert: %w", err)
			}
			if a.Type != alertType || a.Resolved {
				continue
			}
			resolvedAt := at.UTC()
			a.Resolved = true
			a.ResolvedAt = &resolvedAt
			raw, err := json.Marshal(a)
			if err != nil {
				return fmt.Errorf("encode alert: %w", err)
			}
			p.LSet(ctx, s.historyKey, int64(i), raw)
			changed++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("redis resolve alerts: %w", err)
	}
	return changed, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// MemoryStore is an in-process Store for development and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	config  *Config
	history []Alert
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) GetConfig(_ context.Context) (*Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.config == nil {
		return nil, ErrNoConfig
	}
	c := *s.config
	c.Emails = append([]string(nil), s.config.Emails...)
	return &c, nil
}

func (s *MemoryStore) SaveConfig(_ context.Context, cfg Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg.Emails = append([]string(nil), cfg.Emails...)
	s.config = &cfg
	return nil
}

func (s *MemoryStore) Append(_ context.Context, a Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append([]Alert{a}, s.history...)
	if len(s.history) > HistoryLimit {
		s.history = s.history[:HistoryLimit]
	}
	return nil
}

func (s *MemoryStore) History(_ context.Context, limit int) ([]Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.history) {
		limit = len(s.history)
	}
	out := make([]Alert, limit)
	copy(out, s.history[:limit])
	return out, nil
}

func (s *MemoryStore) Resolve(_ context.Context, alertType string, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := 0
	for i := range s.history {
		a := &s.history[i]
		if a.Type != alertType || a.Resolved {
			continue
		}
		resolvedAt := at.UTC()
		a.Resolved = true
		a.ResolvedAt = &resolvedAt
		changed++
	}
	return changed, nil
}

func (s *MemoryStore) Ping(_ context.Context) error {
	return nil
}
