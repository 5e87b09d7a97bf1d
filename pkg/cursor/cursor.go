// Package cursor tracks the next unscoped pull's start date.
package cursor

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/Ramsey-B/clover/pkg/datewindow"
	"github.com/Ramsey-B/clover/pkg/redis"
)

// Key is the storage key holding the next pull's start date
const Key = "next_start_date"

// Store persists the start-date cursor. Get returns the zero time when no
// cursor has been recorded yet.
type Store interface {
	Get(ctx context.Context) (time.Time, error)
	Set(ctx context.Context, date time.Time) error
	Delete(ctx context.Context) error
}

// RedisStore stores the cursor in Redis without expiration
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context) (time.Time, error) {
	value, err := s.client.Get(ctx, Key)
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("failed to get cursor: %w", err)
	}

	date, err := time.Parse(datewindow.DateFormat, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid cursor value %q: %w", value, err)
	}
	return date, nil
}

func (s *RedisStore) Set(ctx context.Context, date time.Time) error {
	if err := s.client.Set(ctx, Key, date.Format(datewindow.DateFormat), 0); err != nil {
		return fmt.Errorf("failed to set cursor: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context) error {
	if err := s.client.Del(ctx, Key); err != nil {
		return fmt.Errorf("failed to delete cursor: %w", err)
	}
	return nil
}

// MemoryStore is an in-memory cursor store for tests
type MemoryStore struct {
	date time.Time
	set  bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Get(ctx context.Context) (time.Time, error) {
	if !s.set {
		return time.Time{}, nil
	}
	return s.date, nil
}

func (s *MemoryStore) Set(ctx context.Context, date time.Time) error {
	s.date = date
	s.set = true
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context) error {
	s.date = time.Time{}
	s.set = false
	return nil
}
