package snapshot

import (
	"context"
	"sync"

	"homefinder/internal/domain"
)

// Store keeps the last seen listing set per subscriber key.
type Store interface {
	Get(ctx context.Context, key string) ([]domain.Listing, bool, error)
	Set(ctx context.Context, key string, listings []domain.Listing) error
}

// Swapper is implemented by stores that can replace a snapshot and return the
// previous one in a single step.
type Swapper interface {
	Swap(ctx context.Context, key string, listings []domain.Listing) ([]domain.Listing, bool, error)
}

// MemoryStore is a process-local Store. Contents are lost on restart.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]domain.Listing
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]domain.Listing)}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]domain.Listing, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ls, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]domain.Listing(nil), ls...), true, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, listings []domain.Listing) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = append([]domain.Listing{}, listings...)
	return nil
}

func (s *MemoryStore) Swap(_ context.Context, key string, listings []domain.Listing) ([]domain.Listing, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	previous, ok := s.data[key]
	s.data[key] = append([]domain.Listing{}, listings...)
	return previous, ok, nil
}
