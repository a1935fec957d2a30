package state

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"mindwell/internal/domain"
)

// SnapshotStore persiste el snapshot {user, isAuthenticated} entre
// reinicios. Load devuelve nil cuando no hay snapshot guardado.
type SnapshotStore interface {
	Load() (*domain.AuthSnapshot, error)
	Save(snap domain.AuthSnapshot) error
	Clear() error
}

type memorySnapshotStore struct {
	mu   sync.Mutex
	snap *domain.AuthSnapshot
}

func NewMemorySnapshotStore() SnapshotStore {
	return &memorySnapshotStore{}
}

func (s *memorySnapshotStore) Load() (*domain.AuthSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap == nil {
		return nil, nil
	}
	copied := *s.snap
	return &copied, nil
}

func (s *memorySnapshotStore) Save(snap domain.AuthSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = &snap
	return nil
}

func (s *memorySnapshotStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = nil
	return nil
}

type redisSnapshotStore struct {
	client *redis.Client
	key    string
}

func NewRedisSnapshotStore(client *redis.Client) SnapshotStore {
	if client == nil {
		return nil
	}
	return &redisSnapshotStore{
		client: client,
		key:    "auth:snapshot",
	}
}

func (s *redisSnapshotStore) Load() (*domain.AuthSnapshot, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	val, err := s.client.Get(ctx, s.key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var snap domain.AuthSnapshot
	if err := json.Unmarshal([]byte(val), &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *redisSnapshotStore) Save(snap domain.AuthSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	return s.client.Set(ctx, s.key, data, 0).Err()
}

func (s *redisSnapshotStore) Clear() error {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	return s.client.Del(ctx, s.key).Err()
}
