package memory

import (
	"context"
	"sync"

	"docgate/internal/audit"
)

// InMemoryStore is the append-only audit store used by tests and
// single-node deployments.
type InMemoryStore struct {
	mu       sync.RWMutex
	records  []audit.Record
	byEntity map[string][]int
}

// NewInMemoryStore creates an empty audit store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{byEntity: make(map[string][]int)}
}

func (s *InMemoryStore) Append(_ context.Context, rec audit.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	if rec.EntityID != "" {
		s.byEntity[rec.EntityID] = append(s.byEntity[rec.EntityID], len(s.records)-1)
	}
	return nil
}

func (s *InMemoryStore) ListByEntity(_ context.Context, entityID string) ([]audit.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	indexes := s.byEntity[entityID]
	out := make([]audit.Record, 0, len(indexes))
	for _, i := range indexes {
		out = append(out, s.records[i])
	}
	return out, nil
}

func (s *InMemoryStore) ListRecent(_ context.Context, limit int) ([]audit.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	start := len(s.records) - limit
	if start < 0 {
		start = 0
	}
	return append([]audit.Record{}, s.records[start:]...), nil
}
