package audit

import (
	"context"
	"sync"

	"secureid/internal/domain"
)

// Store persists audit records. Append-only; records are never updated or
// removed.
type Store interface {
	Append(ctx context.Context, record Record) error
	ListByHolder(ctx context.Context, holder domain.Address) ([]Record, error)
}

// InMemoryStore keeps records in order of arrival. Suits tests and
// single-node deployments.
type InMemoryStore struct {
	mu      sync.RWMutex
	records []Record
}

// NewInMemoryStore creates an empty in-memory audit store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, record Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	return nil
}

func (s *InMemoryStore) ListByHolder(_ context.Context, holder domain.Address) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Record
	for _, record := range s.records {
		if record.Holder == holder {
			out = append(out, record)
		}
	}
	return out, nil
}

// All returns every record in arrival order.
func (s *InMemoryStore) All(_ context.Context) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out, nil
}
