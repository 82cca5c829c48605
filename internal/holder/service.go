// Package holder orchestrates the holder-side identity flow: building a
// proof from a decoded document, anchoring it on the ledger, issuing
// verification codes and rendering the portable payload a verifier scans.
package holder

import (
	"context"
	"errors"
	"log/slog"
	"time"

	dErrors "secureid/pkg/domain-errors"
	"secureid/pkg/platform/sentinel"

	"secureid/internal/domain"
	"secureid/internal/hashing"
	"secureid/internal/ledger"
	"secureid/internal/liveness"
	"secureid/internal/proof"
	"secureid/internal/vericode"
	"secureid/internal/verify"
)

var (
	ErrNoIdentity      = dErrors.New(dErrors.CodeNotFound, "holder has no identity on the ledger")
	ErrIdentityDeleted = dErrors.New(dErrors.CodeConflict, "holder's identity has been deleted")
	ErrNoActiveCode    = dErrors.New(dErrors.CodeNotFound, "no verification code issued for holder")
	ErrCodeExpired     = dErrors.New(dErrors.CodeConflict, "verification code has expired; issue a new one")
)

// Ledger is the slice of ledger behavior the holder flow needs.
type Ledger interface {
	StoreProof(ctx context.Context, params ledger.StoreProofParams) error
	UpdateLivenessStatus(ctx context.Context, holder domain.Address, liveness bool) error
	DeleteIdentity(ctx context.Context, holder domain.Address) error
	GetIdentity(ctx context.Context, holder domain.Address) (domain.IdentityRecord, error)
	IsDocumentUsed(ctx context.Context, fingerprint hashing.Hash) (bool, error)
}

// Service wires the holder-side collaborators together. The liveness checker
// is optional; without one every enrollment starts with the signal false.
type Service struct {
	builder  proof.Builder
	ledger   Ledger
	issuer   *vericode.Issuer
	bindings vericode.BindingStore
	checker  liveness.Checker
	logger   *slog.Logger
	clock    func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLivenessChecker sets the liveness strategy run during enrollment and
// refresh.
func WithLivenessChecker(checker liveness.Checker) Option {
	return func(s *Service) {
		s.checker = checker
	}
}

// WithClock sets the clock function for testability.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewService constructs the holder service.
func NewService(builder proof.Builder, l Ledger, issuer *vericode.Issuer, bindings vericode.BindingStore, logger *slog.Logger, opts ...Option) *Service {
	service := &Service{
		builder:  builder,
		ledger:   l,
		issuer:   issuer,
		bindings: bindings,
		logger:   logger,
		clock:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(service)
		}
	}
	return service
}

// Enroll runs the full creation flow: liveness check, proof build, ledger
// anchoring. The document fingerprint is derived from the same seed the proof
// builder uses, so creation and reuse checks agree byte for byte.
func (s *Service) Enroll(ctx context.Context, holder domain.Address, document domain.DocumentRecord) (proof.Result, error) {
	alive, err := s.runLiveness(ctx)
	if err != nil {
		return proof.Result{}, err
	}

	result, err := s.builder.Build(ctx, document, alive)
	if err != nil {
		return proof.Result{}, err
	}

	fingerprint, err := hashing.DocumentFingerprint(document.Seed())
	if err != nil {
		return proof.Result{}, dErrors.Wrap(dErrors.CodeInvalidInput, "fingerprint document", err)
	}

	err = s.ledger.StoreProof(ctx, ledger.StoreProofParams{
		Holder:              holder,
		ProofID:             result.ProofID,
		Commitment:          result.Commitment,
		IsAdult:             result.PublicSignals.IsAdult,
		LivenessVerified:    result.PublicSignals.LivenessVerified,
		Payload:             result.Payload,
		DocumentFingerprint: fingerprint,
	})
	if err != nil {
		return proof.Result{}, err
	}
	return result, nil
}

// RefreshLiveness reruns the liveness check and pushes the fresh signal to
// the ledger.
func (s *Service) RefreshLiveness(ctx context.Context, holder domain.Address) (bool, error) {
	alive, err := s.runLiveness(ctx)
	if err != nil {
		return false, err
	}
	if err := s.ledger.UpdateLivenessStatus(ctx, holder, alive); err != nil {
		return false, err
	}
	return alive, nil
}

// Unenroll removes the holder's ledger identity. The document that created it
// stays spent.
func (s *Service) Unenroll(ctx context.Context, holder domain.Address) error {
	if err := s.bindings.Delete(ctx, holder); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		s.logger.WarnContext(ctx, "discard code binding failed", "error", err)
	}
	return s.ledger.DeleteIdentity(ctx, holder)
}

// IssueCode issues a fresh verification code and keeps the binding so expiry
// can be enforced locally. Any previous binding is superseded.
func (s *Service) IssueCode(ctx context.Context, holder domain.Address) (vericode.Binding, error) {
	binding, err := s.issuer.Issue(holder)
	if err != nil {
		return vericode.Binding{}, dErrors.Wrap(dErrors.CodeInvalidInput, "issue verification code", err)
	}
	if err := s.bindings.Save(ctx, binding); err != nil {
		return vericode.Binding{}, dErrors.Wrap(dErrors.CodeInternal, "save code binding", err)
	}
	return binding, nil
}

// ActiveCode returns the holder's current binding, enforcing the advisory
// expiry window. Expired bindings are discarded on sight.
func (s *Service) ActiveCode(ctx context.Context, holder domain.Address) (vericode.Binding, error) {
	binding, err := s.bindings.Find(ctx, holder)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return vericode.Binding{}, ErrNoActiveCode
	case errors.Is(err, sentinel.ErrExpired):
		return vericode.Binding{}, ErrCodeExpired
	case err != nil:
		return vericode.Binding{}, dErrors.Wrap(dErrors.CodeInternal, "load code binding", err)
	}
	if binding.Expired(s.clock()) {
		if err := s.bindings.Delete(ctx, holder); err != nil {
			s.logger.WarnContext(ctx, "discard expired binding failed", "error", err)
		}
		return vericode.Binding{}, ErrCodeExpired
	}
	return binding, nil
}

// RenderPayload builds the portable payload for the holder's active identity
// and current code. The code itself never enters the payload; it travels
// out-of-band.
func (s *Service) RenderPayload(ctx context.Context, holder domain.Address, payloadType verify.PayloadType) (string, error) {
	record, err := s.ledger.GetIdentity(ctx, holder)
	if err != nil {
		return "", err
	}
	if !record.Exists() {
		return "", ErrNoIdentity
	}
	if record.Deleted {
		return "", ErrIdentityDeleted
	}

	binding, err := s.ActiveCode(ctx, holder)
	if err != nil {
		return "", err
	}

	payload := verify.Payload{
		Type:        payloadType,
		ProofID:     record.ProofID,
		AddressHash: binding.AddressFingerprint,
		CodeHash:    binding.CodeHash,
		HasCodeHash: true,
	}
	encoded, err := payload.Encode()
	if err != nil {
		return "", dErrors.Wrap(dErrors.CodeInternal, "encode payload", err)
	}
	return string(encoded), nil
}

func (s *Service) runLiveness(ctx context.Context) (bool, error) {
	if s.checker == nil {
		return false, nil
	}
	alive, err := s.checker.Run(ctx)
	if err != nil {
		return false, dErrors.Wrap(dErrors.CodeUnavailable, "run liveness check", err)
	}
	return alive, nil
}
