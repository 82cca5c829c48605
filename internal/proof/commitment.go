package proof

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	dErrors "secureid/pkg/domain-errors"

	"secureid/internal/domain"
	"secureid/internal/hashing"
)

// Domain separators keep the proof identifier and the commitment in disjoint
// hash domains even when derived from the same seed.
const (
	proofIDContext    = "secureid.proof-id.v1"
	commitmentContext = "secureid.commitment.v1"
)

// CommitmentBuilder is the reference backend: a deterministic keccak
// commitment over the private attribute tuple, with a proof bundle sliced
// from the commitment. The bundle mimics a Groth16 proof shape but carries
// no soundness; substitute the zk backend where that matters.
type CommitmentBuilder struct {
	clock func() time.Time
}

// CommitmentOption configures a CommitmentBuilder.
type CommitmentOption func(*CommitmentBuilder)

// WithCommitmentClock sets the clock function for testability.
func WithCommitmentClock(clock func() time.Time) CommitmentOption {
	return func(b *CommitmentBuilder) {
		if clock != nil {
			b.clock = clock
		}
	}
}

// NewCommitmentBuilder constructs the reference builder.
func NewCommitmentBuilder(opts ...CommitmentOption) *CommitmentBuilder {
	builder := &CommitmentBuilder{clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(builder)
		}
	}
	return builder
}

// payloadBundle is the serialized proof format stored verbatim by the ledger.
type payloadBundle struct {
	Version       int                  `json:"version"`
	Protocol      string               `json:"protocol"`
	Proof         proofPoints          `json:"proof"`
	PublicSignals domain.PublicSignals `json:"publicSignals"`
	CreatedAt     time.Time            `json:"createdAt"`
}

type proofPoints struct {
	PiA string `json:"piA"`
	PiB string `json:"piB"`
	PiC string `json:"piC"`
}

// Build derives the proof identifier, the commitment and the proof bundle.
// The proof identifier is reproducible for the same document seed; global
// uniqueness comes from seeds being unique per physical document.
func (b *CommitmentBuilder) Build(_ context.Context, record domain.DocumentRecord, liveness bool) (Result, error) {
	seed := record.Seed()
	if seed == "" {
		return Result{}, dErrors.New(dErrors.CodeInvalidInput, "document record carries no reference id or name")
	}
	age := record.Age(b.clock())
	if age <= 0 {
		return Result{}, dErrors.New(dErrors.CodeInvalidInput, "document record carries no usable age")
	}

	proofID, err := DeriveProofID(seed)
	if err != nil {
		return Result{}, err
	}
	attrs := domain.IdentityAttributes{
		ReferenceSeed:    seed,
		AgeYears:         age,
		IsAdult:          age >= AdultAge,
		LivenessVerified: liveness,
	}
	commitment, err := Commit(attrs)
	if err != nil {
		return Result{}, err
	}

	signals := domain.PublicSignals{IsAdult: attrs.IsAdult, LivenessVerified: liveness}
	bundle := payloadBundle{
		Version:       1,
		Protocol:      "commitment-v1",
		Proof:         sliceCommitment(commitment),
		PublicSignals: signals,
		CreatedAt:     b.clock().UTC(),
	}
	payload, err := json.Marshal(bundle)
	if err != nil {
		return Result{}, fmt.Errorf("marshal proof bundle: %w", err)
	}

	return Result{
		ProofID:       proofID,
		Commitment:    commitment,
		PublicSignals: signals,
		Payload:       string(payload),
	}, nil
}

// Commit binds the private attribute tuple into a one-way digest. Any change
// to seed, age, adult flag or liveness flag yields a different commitment,
// and the raw age is not recoverable from the output.
func Commit(attrs domain.IdentityAttributes) (string, error) {
	packed := commitmentContext +
		"|" + attrs.ReferenceSeed +
		"|" + strconv.Itoa(attrs.AgeYears) +
		"|" + strconv.FormatBool(attrs.IsAdult) +
		"|" + strconv.FormatBool(attrs.LivenessVerified)
	digest, err := hashing.Fingerprint(packed, hashing.TagString)
	if err != nil {
		return "", fmt.Errorf("commit attributes: %w", err)
	}
	return digest.Hex(), nil
}

// DeriveProofID derives the stable proof identifier for a document seed.
// Both builder backends share it so a backend swap never orphans stored
// identities.
func DeriveProofID(seed string) (string, error) {
	digest, err := hashing.Fingerprint(proofIDContext+"|"+seed, hashing.TagString)
	if err != nil {
		return "", fmt.Errorf("derive proof id: %w", err)
	}
	return digest.Hex(), nil
}

// sliceCommitment carves the bundle's point fields out of the commitment hex.
func sliceCommitment(commitment string) proofPoints {
	hexBody := commitment
	if len(hexBody) >= 2 && hexBody[:2] == "0x" {
		hexBody = hexBody[2:]
	}
	third := len(hexBody) / 3
	return proofPoints{
		PiA: hexBody[:third],
		PiB: hexBody[third : 2*third],
		PiC: hexBody[2*third:],
	}
}
