package storage

import (
	"context"
	"sync"
)

// MemoryKVStore keeps values in process memory. Used for development and tests.
type MemoryKVStore struct {
	mu      sync.RWMutex
	values  map[string][]byte
	failErr error
}

func NewMemoryKVStore() *MemoryKVStore {
	return &MemoryKVStore{values: make(map[string][]byte)}
}

func (s *MemoryKVStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (s *MemoryKVStore) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	v := make([]byte, len(value))
	copy(v, value)
	s.values[key] = v
	return nil
}

// FailWrites makes every following Set return err. Pass nil to recover.
func (s *MemoryKVStore) FailWrites(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failErr = err
}
