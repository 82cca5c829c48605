// Package ledger is the authoritative identity state machine. One identity
// slot per holder address, a permanent used-document registry, a reverse
// lookup from address fingerprints, and opaque proof payload storage. Every
// mutating operation is atomic and totally ordered; reads observe committed
// state without locking out mutations.
package ledger

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	dErrors "secureid/pkg/domain-errors"
	"secureid/pkg/platform/sentinel"

	"secureid/internal/domain"
	"secureid/internal/hashing"
	"secureid/internal/ledger/metrics"
)

// Domain errors surfaced by ledger operations. Conflicts, not-founds and
// validation failures stay distinct so callers can offer different remedies.
var (
	ErrEmptyProofID       = dErrors.New(dErrors.CodeInvalidInput, "proof id must not be empty")
	ErrDuplicateIdentity  = dErrors.New(dErrors.CodeConflict, "holder already has an active identity; delete it first")
	ErrDocumentReused     = dErrors.New(dErrors.CodeConflict, "document has already been used to create an identity")
	ErrNotFound           = dErrors.New(dErrors.CodeNotFound, "no identity stored for holder")
	ErrAlreadyDeleted     = dErrors.New(dErrors.CodeConflict, "identity has been deleted")
	ErrUnknownFingerprint = dErrors.New(dErrors.CodeNotFound, "address fingerprint is not registered")
)

// EventSink receives the events mutating operations emit.
type EventSink interface {
	Emit(ctx context.Context, event domain.Event) error
}

// StoreProofParams carries everything a creation needs. The ledger never
// inspects Payload; it stores and returns it verbatim.
type StoreProofParams struct {
	Holder              domain.Address
	ProofID             string
	Commitment          string
	IsAdult             bool
	LivenessVerified    bool
	Payload             string
	DocumentFingerprint hashing.Hash
}

// Service implements the ledger state machine over an injectable store.
type Service struct {
	mu      sync.Mutex // serializes mutating operations
	store   Store
	events  EventSink
	metrics *metrics.Metrics
	logger  *slog.Logger
	clock   func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock sets the clock function for testability.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewService constructs the ledger service.
func NewService(store Store, events EventSink, m *metrics.Metrics, logger *slog.Logger, opts ...Option) *Service {
	service := &Service{
		store:   store,
		events:  events,
		metrics: m,
		logger:  logger,
		clock:   time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(service)
		}
	}
	return service
}

// StoreProof creates the holder's identity. All four effects — record,
// document marking, fingerprint mapping, payload — commit atomically or not
// at all.
func (s *Service) StoreProof(ctx context.Context, params StoreProofParams) error {
	if params.ProofID == "" {
		return ErrEmptyProofID
	}
	holder, err := domain.NormalizeAddress(params.Holder.String())
	if err != nil {
		return dErrors.Wrap(dErrors.CodeInvalidInput, "invalid holder address", err)
	}
	addrFingerprint, err := hashing.AddressFingerprint(holder)
	if err != nil {
		return dErrors.Wrap(dErrors.CodeInternal, "fingerprint holder", err)
	}

	record := domain.IdentityRecord{
		ProofID:          params.ProofID,
		Commitment:       params.Commitment,
		IsAdult:          params.IsAdult,
		LivenessVerified: params.LivenessVerified,
		CreatedAt:        s.clock(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err = s.store.CreateIdentity(ctx, CreateParams{
		Holder:              holder,
		Record:              record,
		AddressFingerprint:  addrFingerprint,
		DocumentFingerprint: params.DocumentFingerprint,
		Payload:             params.Payload,
	})
	switch {
	case errors.Is(err, sentinel.ErrConflict):
		return ErrDuplicateIdentity
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		s.metrics.DocumentReuseBlock.Inc()
		return ErrDocumentReused
	case err != nil:
		return dErrors.Wrap(dErrors.CodeInternal, "store identity", err)
	}

	s.metrics.IdentitiesCreated.Inc()
	s.emit(ctx, domain.Event{
		Kind:             domain.EventIdentityCreated,
		Holder:           holder,
		ProofID:          record.ProofID,
		IsAdult:          record.IsAdult,
		LivenessVerified: record.LivenessVerified,
	})
	return nil
}

// UpdateLivenessStatus sets the liveness public signal and merges the new
// status into the stored payload without destroying prior content.
func (s *Service) UpdateLivenessStatus(ctx context.Context, holder domain.Address, liveness bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.store.GetIdentity(ctx, holder)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return ErrNotFound
		}
		return dErrors.Wrap(dErrors.CodeInternal, "load identity", err)
	}
	if record.Deleted {
		return ErrAlreadyDeleted
	}

	payload, err := s.store.GetPayload(ctx, record.ProofID)
	if err != nil {
		return dErrors.Wrap(dErrors.CodeInternal, "load proof payload", err)
	}
	merged, err := MergeLiveness(payload, liveness, s.clock())
	if err != nil {
		return dErrors.Wrap(dErrors.CodeInternal, "merge liveness status", err)
	}

	if err := s.store.UpdateLiveness(ctx, holder, liveness, merged); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return ErrNotFound
		case errors.Is(err, sentinel.ErrInvalidState):
			return ErrAlreadyDeleted
		default:
			return dErrors.Wrap(dErrors.CodeInternal, "update liveness", err)
		}
	}

	s.metrics.LivenessUpdates.Inc()
	s.emit(ctx, domain.Event{
		Kind:             domain.EventLivenessUpdated,
		Holder:           holder,
		ProofID:          record.ProofID,
		IsAdult:          record.IsAdult,
		LivenessVerified: liveness,
	})
	return nil
}

// GetIdentity returns the holder's record, or a zero record when none
// exists. Callers treat an empty ProofID as "no identity".
func (s *Service) GetIdentity(ctx context.Context, holder domain.Address) (domain.IdentityRecord, error) {
	record, err := s.store.GetIdentity(ctx, holder)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return domain.IdentityRecord{}, nil
		}
		return domain.IdentityRecord{}, dErrors.Wrap(dErrors.CodeInternal, "load identity", err)
	}
	return record, nil
}

// GetPayload returns the stored payload for proofID; unknown proof ids yield
// an empty string, not an error.
func (s *Service) GetPayload(ctx context.Context, proofID string) (string, error) {
	payload, err := s.store.GetPayload(ctx, proofID)
	if err != nil {
		return "", dErrors.Wrap(dErrors.CodeInternal, "load proof payload", err)
	}
	return payload, nil
}

// DeleteIdentity marks the holder's identity deleted. The document
// fingerprint that created it stays used forever.
func (s *Service) DeleteIdentity(ctx context.Context, holder domain.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.store.GetIdentity(ctx, holder)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return ErrNotFound
		}
		return dErrors.Wrap(dErrors.CodeInternal, "load identity", err)
	}
	if record.Deleted {
		return ErrAlreadyDeleted
	}

	if err := s.store.MarkDeleted(ctx, holder); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return ErrNotFound
		case errors.Is(err, sentinel.ErrInvalidState):
			return ErrAlreadyDeleted
		default:
			return dErrors.Wrap(dErrors.CodeInternal, "delete identity", err)
		}
	}

	s.metrics.IdentitiesDeleted.Inc()
	s.emit(ctx, domain.Event{
		Kind:             domain.EventIdentityDeleted,
		Holder:           holder,
		ProofID:          record.ProofID,
		IsAdult:          record.IsAdult,
		LivenessVerified: record.LivenessVerified,
	})
	return nil
}

// IsDocumentUsed reports whether a document fingerprint has ever created an
// identity, deleted or not.
func (s *Service) IsDocumentUsed(ctx context.Context, fingerprint hashing.Hash) (bool, error) {
	used, err := s.store.IsDocumentUsed(ctx, fingerprint)
	if err != nil {
		return false, dErrors.Wrap(dErrors.CodeInternal, "check document usage", err)
	}
	return used, nil
}

// VerifyByCodeHash answers a verifier's query: does the claimed proof id
// match the resolved holder's record, and does the presented code bind to
// the presented code hash under that holder. It mutates nothing, so
// verifiers can probe repeatedly without committing an event; a false
// return is a normal outcome, not an error.
func (s *Service) VerifyByCodeHash(ctx context.Context, proofID string, addressFingerprint hashing.Hash, code string, codeHash hashing.Hash) (bool, error) {
	holder, err := s.store.ResolveFingerprint(ctx, addressFingerprint)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, ErrUnknownFingerprint
		}
		return false, dErrors.Wrap(dErrors.CodeInternal, "resolve fingerprint", err)
	}

	record, err := s.store.GetIdentity(ctx, holder)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, ErrNotFound
		}
		return false, dErrors.Wrap(dErrors.CodeInternal, "load identity", err)
	}
	if record.Deleted {
		return false, ErrAlreadyDeleted
	}

	proofMatches := record.ProofID == proofID

	expected, err := hashing.CodeBinding(code, holder)
	if err != nil {
		return false, dErrors.Wrap(dErrors.CodeInvalidInput, "bind presented code", err)
	}
	codeValid := expected.Equal(codeHash)

	verified := proofMatches && codeValid
	outcome := "failed"
	if verified {
		outcome = "verified"
	}
	s.metrics.Verifications.WithLabelValues(outcome).Inc()
	return verified, nil
}

// LogVerificationEvent emits a verification event for a fingerprint's holder.
// Verifiers call it after a successful check when they want the attempt on
// the record; it performs no invariant checks beyond fingerprint resolution.
func (s *Service) LogVerificationEvent(ctx context.Context, proofID string, addressFingerprint hashing.Hash) error {
	holder, err := s.store.ResolveFingerprint(ctx, addressFingerprint)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return ErrUnknownFingerprint
		}
		return dErrors.Wrap(dErrors.CodeInternal, "resolve fingerprint", err)
	}
	s.emit(ctx, domain.Event{
		Kind:    domain.EventIdentityVerified,
		Holder:  holder,
		ProofID: proofID,
	})
	return nil
}

// emit publishes an event; delivery failures are logged, never surfaced, so
// ledger state and event stream cannot disagree on the operation outcome.
func (s *Service) emit(ctx context.Context, event domain.Event) {
	event.ID = uuid.NewString()
	event.Timestamp = s.clock()
	if err := s.events.Emit(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "emit ledger event failed",
			"event_kind", string(event.Kind),
			"holder", event.Holder.String(),
			"error", err,
		)
	}
}
