package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned for unknown or expired sessions.
var ErrNotFound = errors.New("session: not found")

// Store persists import sessions.
type Store interface {
	Create(ctx context.Context) (*ImportState, error)
	Get(ctx context.Context, id string) (*ImportState, error)
	Save(ctx context.Context, s *ImportState) error
	Delete(ctx context.Context, id string) error
}

// MemoryStore keeps sessions in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*ImportState
	now      func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*ImportState), now: time.Now}
}

func (m *MemoryStore) Create(_ context.Context) (*ImportState, error) {
	s := NewImportState(uuid.NewString())
	s.UpdatedAt = m.now()
	m.mu.Lock()
	m.sessions[s.ID] = s.clone()
	m.mu.Unlock()
	return s, nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*ImportState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s.clone(), nil
}

func (m *MemoryStore) Save(_ context.Context, s *ImportState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.ID]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, s.ID)
	}
	s.UpdatedAt = m.now()
	m.sessions[s.ID] = s.clone()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(m.sessions, id)
	return nil
}

const (
	keyPrefix  = "sdgraph:import:" // sdgraph:import:{id}
	DefaultTTL = 24 * time.Hour
)

// RedisStore keeps sessions as JSON documents in Redis. Every save renews
// the expiry.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a RedisStore. A ttl of zero uses DefaultTTL.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

func (r *RedisStore) key(id string) string { return keyPrefix + id }

func (r *RedisStore) Create(ctx context.Context) (*ImportState, error) {
	s := NewImportState(uuid.NewString())
	if err := r.write(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (r *RedisStore) Get(ctx context.Context, id string) (*ImportState, error) {
	data, err := r.client.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("session: get %s: %w", id, err)
	}
	var s ImportState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("session: decode %s: %w", id, err)
	}
	if s.Mapping == nil {
		s.Mapping = map[string]string{}
	}
	return &s, nil
}

func (r *RedisStore) Save(ctx context.Context, s *ImportState) error {
	n, err := r.client.Exists(ctx, r.key(s.ID)).Result()
	if err != nil {
		return fmt.Errorf("session: save %s: %w", s.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, s.ID)
	}
	return r.write(ctx, s)
}

func (r *RedisStore) write(ctx context.Context, s *ImportState) error {
	s.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("session: encode %s: %w", s.ID, err)
	}
	if err := r.client.Set(ctx, r.key(s.ID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("session: save %s: %w", s.ID, err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	n, err := r.client.Del(ctx, r.key(id)).Result()
	if err != nil {
		return fmt.Errorf("session: delete %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}
