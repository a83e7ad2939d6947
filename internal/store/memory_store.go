package store

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/storage/memory/v2"
)

type MemoryStore struct {
	mu      sync.Mutex
	storage *memory.Storage
}

func (s *MemoryStore) SetNX(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	val, err := s.storage.Get(key)
	if err != nil {
		return false, err
	}
	if val != nil {
		return false, nil
	}
	return true, s.storage.Set(key, []byte{1}, ttl)
}

func (s *MemoryStore) Exists(ctx context.Context, key string) (bool, error) {
	val, err := s.storage.Get(key)
	return val != nil, err
}

func (s *MemoryStore) Del(ctx context.Context, key string) error {
	return s.storage.Delete(key)
}

// Storage exposes the underlying storage so it can back fiber sessions too.
func (s *MemoryStore) Storage() *memory.Storage {
	return s.storage
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		storage: memory.New(memory.Config{GCInterval: 10 * time.Second}),
	}
}
