package zk

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	frmimc "github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	"golang.org/x/crypto/sha3"

	dErrors "secureid/pkg/domain-errors"

	"secureid/internal/domain"
	"secureid/internal/proof"
)

// Prover builds Groth16 age-threshold proofs. Circuit compilation and key
// setup run once at construction; Build only assembles witnesses and proves.
type Prover struct {
	cs    constraint.ConstraintSystem
	pk    groth16.ProvingKey
	vk    groth16.VerifyingKey
	clock func() time.Time
}

// ProverOption configures a Prover.
type ProverOption func(*Prover)

// WithProverClock sets the clock function for testability.
func WithProverClock(clock func() time.Time) ProverOption {
	return func(p *Prover) {
		if clock != nil {
			p.clock = clock
		}
	}
}

// NewProver compiles the circuit and runs the Groth16 setup.
func NewProver(opts ...ProverOption) (*Prover, error) {
	var circuit Circuit
	field := fr.Modulus()

	cs, err := frontend.Compile(field, r1cs.NewBuilder, &circuit)
	if err != nil {
		return nil, fmt.Errorf("compile circuit: %w", err)
	}
	pk, vk, err := groth16.Setup(cs)
	if err != nil {
		return nil, fmt.Errorf("groth16 setup: %w", err)
	}

	prover := &Prover{cs: cs, pk: pk, vk: vk, clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(prover)
		}
	}
	return prover, nil
}

// zkBundle is the serialized proof payload for the Groth16 backend.
type zkBundle struct {
	Version       int                  `json:"version"`
	Protocol      string               `json:"protocol"`
	Proof         string               `json:"proof"` // base64 gnark proof bytes
	PublicInputs  []string             `json:"publicInputs"`
	PublicSignals domain.PublicSignals `json:"publicSignals"`
	CreatedAt     time.Time            `json:"createdAt"`
}

// Build assembles the witness from the document record, proves it and packs
// the proof plus public inputs into the payload bundle.
func (p *Prover) Build(_ context.Context, record domain.DocumentRecord, liveness bool) (proof.Result, error) {
	seed := record.Seed()
	if seed == "" {
		return proof.Result{}, dErrors.New(dErrors.CodeInvalidInput, "document record carries no reference id or name")
	}
	age := record.Age(p.clock())
	if age <= 0 {
		return proof.Result{}, dErrors.New(dErrors.CodeInvalidInput, "document record carries no usable age")
	}

	seedInt := seedToField(seed)
	ageInt := big.NewInt(int64(age))
	livenessInt := big.NewInt(0)
	if liveness {
		livenessInt = big.NewInt(1)
	}
	commitment := mimcCommit(seedInt, ageInt, livenessInt)
	threshold := big.NewInt(proof.AdultAge)

	isAdult := age >= proof.AdultAge
	if !isAdult {
		// The circuit cannot prove threshold <= age for a minor; the
		// backend reports the negative signal without a proof.
		return proof.Result{}, dErrors.New(dErrors.CodeInvalidInput, "age below provable threshold")
	}

	assignment := &Circuit{
		Commitment: commitment,
		Threshold:  threshold,
		Liveness:   livenessInt,
		Seed:       seedInt,
		Age:        ageInt,
	}
	witness, err := frontend.NewWitness(assignment, fr.Modulus())
	if err != nil {
		return proof.Result{}, fmt.Errorf("build witness: %w", err)
	}
	zkProof, err := groth16.Prove(p.cs, p.pk, witness)
	if err != nil {
		return proof.Result{}, fmt.Errorf("prove: %w", err)
	}

	var buf bytes.Buffer
	if _, err := zkProof.WriteTo(&buf); err != nil {
		return proof.Result{}, fmt.Errorf("serialize proof: %w", err)
	}

	proofID, err := proof.DeriveProofID(seed)
	if err != nil {
		return proof.Result{}, err
	}
	signals := domain.PublicSignals{IsAdult: isAdult, LivenessVerified: liveness}
	bundle := zkBundle{
		Version:  1,
		Protocol: "groth16-bn254",
		Proof:    base64.StdEncoding.EncodeToString(buf.Bytes()),
		PublicInputs: []string{
			commitment.String(),
			threshold.String(),
			livenessInt.String(),
		},
		PublicSignals: signals,
		CreatedAt:     p.clock().UTC(),
	}
	payload, err := json.Marshal(bundle)
	if err != nil {
		return proof.Result{}, fmt.Errorf("marshal proof bundle: %w", err)
	}

	return proof.Result{
		ProofID:       proofID,
		Commitment:    commitment.String(),
		PublicSignals: signals,
		Payload:       string(payload),
	}, nil
}

// Verify checks a serialized bundle against the prover's verifying key.
// Returns false on a sound-but-unsatisfied proof and an error on malformed
// input.
func (p *Prover) Verify(payload string) (bool, error) {
	var bundle zkBundle
	if err := json.Unmarshal([]byte(payload), &bundle); err != nil {
		return false, dErrors.Wrap(dErrors.CodeMalformedPayload, "proof bundle is not valid JSON", err)
	}
	if len(bundle.PublicInputs) != 3 {
		return false, dErrors.New(dErrors.CodeMalformedPayload, "proof bundle carries wrong public input count")
	}

	raw, err := base64.StdEncoding.DecodeString(bundle.Proof)
	if err != nil {
		return false, dErrors.Wrap(dErrors.CodeMalformedPayload, "proof bytes are not valid base64", err)
	}
	zkProof := groth16.NewProof(ecc.BN254)
	if _, err := zkProof.ReadFrom(bytes.NewReader(raw)); err != nil {
		return false, dErrors.Wrap(dErrors.CodeMalformedPayload, "proof bytes do not decode", err)
	}

	inputs := make([]*big.Int, len(bundle.PublicInputs))
	for i, s := range bundle.PublicInputs {
		n, ok := new(big.Int).SetString(s, 10)
		if !ok {
			return false, dErrors.New(dErrors.CodeMalformedPayload, "public input is not a decimal integer")
		}
		inputs[i] = n
	}
	publicAssignment := &Circuit{
		Commitment: inputs[0],
		Threshold:  inputs[1],
		Liveness:   inputs[2],
	}
	publicWitness, err := frontend.NewWitness(publicAssignment, fr.Modulus(), frontend.PublicOnly())
	if err != nil {
		return false, fmt.Errorf("build public witness: %w", err)
	}

	if err := groth16.Verify(zkProof, p.vk, publicWitness); err != nil {
		return false, nil
	}
	return true, nil
}

// seedToField hashes the document seed into a field element the way the
// identity fields are preprocessed before entering the circuit.
func seedToField(seed string) *big.Int {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(seed))
	n := new(big.Int).SetBytes(h.Sum(nil))
	return n.Mod(n, fr.Modulus())
}

// mimcCommit computes the out-of-circuit MiMC commitment with the same
// parameters and write order as Circuit.Define.
func mimcCommit(inputs ...*big.Int) *big.Int {
	h := frmimc.NewMiMC()
	for _, x := range inputs {
		var fe fr.Element
		fe.SetBigInt(x)
		h.Write(fe.Marshal())
	}
	sum := h.Sum(nil)
	out := new(big.Int).SetBytes(sum)
	return out.Mod(out, fr.Modulus())
}
