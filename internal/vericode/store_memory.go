package vericode

import (
	"context"
	"sync"
	"time"

	"secureid/internal/domain"
	"secureid/pkg/platform/sentinel"
)

// InMemoryBindingStore holds bindings in a mutex-guarded map. Expiry is
// evaluated on read so the store needs no background sweeper.
type InMemoryBindingStore struct {
	mu       sync.RWMutex
	bindings map[domain.Address]Binding
	clock    Clock
}

// MemoryOption configures an InMemoryBindingStore.
type MemoryOption func(*InMemoryBindingStore)

// WithMemoryClock sets the clock function for testability.
func WithMemoryClock(clock Clock) MemoryOption {
	return func(s *InMemoryBindingStore) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewInMemoryBindingStore creates an empty in-memory binding store.
func NewInMemoryBindingStore(opts ...MemoryOption) *InMemoryBindingStore {
	store := &InMemoryBindingStore{
		bindings: make(map[domain.Address]Binding),
		clock:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store
}

// Save stores binding, replacing any previous code issued to the holder.
func (s *InMemoryBindingStore) Save(_ context.Context, binding Binding) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bindings[binding.Holder] = binding
	return nil
}

// Find returns the holder's current binding. Expired bindings surface as
// sentinel.ErrExpired so callers can distinguish "issue a new code" from
// "never issued".
func (s *InMemoryBindingStore) Find(_ context.Context, holder domain.Address) (Binding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	binding, ok := s.bindings[holder]
	if !ok {
		return Binding{}, sentinel.ErrNotFound
	}
	if binding.Expired(s.clock()) {
		return Binding{}, sentinel.ErrExpired
	}
	return binding, nil
}

// Delete discards the holder's binding if present.
func (s *InMemoryBindingStore) Delete(_ context.Context, holder domain.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.bindings, holder)
	return nil
}
