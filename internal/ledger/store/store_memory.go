// Package store provides the ledger persistence implementations: an
// in-memory store for tests and single-node use, and a PostgreSQL store for
// production.
package store

import (
	"context"
	"sync"

	"secureid/internal/domain"
	"secureid/internal/hashing"
	"secureid/internal/ledger"
	"secureid/pkg/platform/sentinel"
)

// InMemoryStore keeps all ledger state in mutex-guarded maps. Document and
// address fingerprint entries are append-only; identity records are mutated
// in place but never removed.
type InMemoryStore struct {
	mu           sync.RWMutex
	identities   map[domain.Address]domain.IdentityRecord
	payloads     map[string]string
	documents    map[hashing.Hash]struct{}
	fingerprints map[hashing.Hash]domain.Address
}

// NewInMemoryStore creates an empty in-memory ledger store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		identities:   make(map[domain.Address]domain.IdentityRecord),
		payloads:     make(map[string]string),
		documents:    make(map[hashing.Hash]struct{}),
		fingerprints: make(map[hashing.Hash]domain.Address),
	}
}

// CreateIdentity applies all four creation effects under one lock so
// concurrent attempts on the same document fingerprint serialize and exactly
// one wins.
func (s *InMemoryStore) CreateIdentity(_ context.Context, params ledger.CreateParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.identities[params.Holder]; ok && !existing.Deleted {
		return sentinel.ErrConflict
	}
	if _, used := s.documents[params.DocumentFingerprint]; used {
		return sentinel.ErrAlreadyUsed
	}

	s.identities[params.Holder] = params.Record
	s.documents[params.DocumentFingerprint] = struct{}{}
	s.fingerprints[params.AddressFingerprint] = params.Holder
	s.payloads[params.Record.ProofID] = params.Payload
	return nil
}

// GetIdentity returns the holder's record, deleted or not.
func (s *InMemoryStore) GetIdentity(_ context.Context, holder domain.Address) (domain.IdentityRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.identities[holder]
	if !ok {
		return domain.IdentityRecord{}, sentinel.ErrNotFound
	}
	return record, nil
}

// UpdateLiveness sets the liveness signal and replaces the stored payload
// with the caller-merged content.
func (s *InMemoryStore) UpdateLiveness(_ context.Context, holder domain.Address, liveness bool, payload string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.identities[holder]
	if !ok {
		return sentinel.ErrNotFound
	}
	if record.Deleted {
		return sentinel.ErrInvalidState
	}
	record.LivenessVerified = liveness
	s.identities[holder] = record
	s.payloads[record.ProofID] = payload
	return nil
}

// MarkDeleted flips the record's deleted flag. The document fingerprint stays
// used.
func (s *InMemoryStore) MarkDeleted(_ context.Context, holder domain.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.identities[holder]
	if !ok {
		return sentinel.ErrNotFound
	}
	if record.Deleted {
		return sentinel.ErrInvalidState
	}
	record.Deleted = true
	s.identities[holder] = record
	return nil
}

// GetPayload returns the stored payload for proofID, or empty when unknown.
func (s *InMemoryStore) GetPayload(_ context.Context, proofID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.payloads[proofID], nil
}

// IsDocumentUsed reports whether the document fingerprint has ever created an
// identity.
func (s *InMemoryStore) IsDocumentUsed(_ context.Context, fingerprint hashing.Hash) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, used := s.documents[fingerprint]
	return used, nil
}

// ResolveFingerprint maps an address fingerprint back to its holder.
func (s *InMemoryStore) ResolveFingerprint(_ context.Context, fingerprint hashing.Hash) (domain.Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	holder, ok := s.fingerprints[fingerprint]
	if !ok {
		return "", sentinel.ErrNotFound
	}
	return holder, nil
}
