// Package proof derives identity commitments and proof bundles from decoded
// document records. The ledger treats the produced payload as an opaque blob;
// backends are interchangeable behind Builder so a circuit-backed prover can
// replace the deterministic commitment scheme without touching the ledger.
package proof

import (
	"context"

	"secureid/internal/domain"
)

// Result is the holder-side output of building an identity proof.
type Result struct {
	ProofID       string
	Commitment    string
	PublicSignals domain.PublicSignals
	Payload       string
}

// Builder turns a decoded document record plus the liveness signal into a
// commitment, a stable proof identifier and a serializable proof bundle.
type Builder interface {
	Build(ctx context.Context, record domain.DocumentRecord, liveness bool) (Result, error)
}

// AdultAge is the age threshold behind the isAdult public signal.
const AdultAge = 18
