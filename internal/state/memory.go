package state

import (
	"context"
	"sort"
	"sync"

	"github.com/user/orderbot/internal/types"
)

// MemoryStore is an in-process SessionStore. Contents are lost on exit.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[types.SessionKey][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[types.SessionKey][]byte)}
}

func (s *MemoryStore) Get(_ context.Context, key types.SessionKey) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.blobs[key]
	if !ok {
		return nil, types.ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (s *MemoryStore) Set(_ context.Context, key types.SessionKey, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.blobs[key] = append([]byte(nil), data...)
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]types.SessionKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]types.SessionKey, 0, len(s.blobs))
	for key := range s.blobs {
		if isCustomerKey(string(key)) {
			keys = append(keys, key)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
