package store

import (
	"context"
	"sync"

	"github.com/dunamismax/enlarge/internal/domain"
)

type MemoryUsageStore struct {
	mu   sync.RWMutex
	runs []domain.RunUsage
}

func NewMemoryUsageStore() *MemoryUsageStore {
	return &MemoryUsageStore{}
}

func (s *MemoryUsageStore) CreateUsageLog(_ context.Context, usage domain.RunUsage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, usage)
	return nil
}

// ListUsage returns the newest runs first.
func (s *MemoryUsageStore) ListUsage(_ context.Context, limit int) ([]domain.RunUsage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.runs) {
		limit = len(s.runs)
	}
	out := make([]domain.RunUsage, 0, limit)
	for i := len(s.runs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.runs[i])
	}
	return out, nil
}
