// Package verify implements the verifier side of code-based identity checks:
// the portable payload a holder renders for scanning, and the per-attempt
// state machine a verifier drives from code entry to a terminal outcome.
package verify

import (
	"encoding/json"

	dErrors "secureid/pkg/domain-errors"

	"secureid/internal/hashing"
)

// PayloadType tags what claim the payload asks the verifier to check.
type PayloadType string

const (
	// PayloadTypeIdentity asks for a full identity-validity check.
	PayloadTypeIdentity PayloadType = "identity"
	// PayloadTypeAge asks only for the adult public signal.
	PayloadTypeAge PayloadType = "age"
)

// Payload is the portable verification payload a holder encodes into a
// scannable code. Field names are fixed wire contract; hex values are
// rendered with a 0x prefix and accepted with or without one.
type Payload struct {
	Type        PayloadType
	ProofID     string
	AddressHash hashing.Hash
	CodeHash    hashing.Hash
	HasCodeHash bool
}

// wirePayload is the raw JSON shape before hex normalization.
type wirePayload struct {
	Type        string `json:"type"`
	ProofID     string `json:"proofId"`
	AddressHash string `json:"addressHash"`
	CodeHash    string `json:"codeHash,omitempty"`
}

// ParsePayload decodes and validates a scanned payload. Missing type,
// proofId or addressHash, an unknown type, or non-hex hashes all surface as
// malformed-payload errors distinguishable from verification negatives.
func ParsePayload(data []byte) (Payload, error) {
	var wire wirePayload
	if err := json.Unmarshal(data, &wire); err != nil {
		return Payload{}, dErrors.Wrap(dErrors.CodeMalformedPayload, "payload is not valid JSON", err)
	}

	switch {
	case wire.Type == "":
		return Payload{}, dErrors.New(dErrors.CodeMalformedPayload, "payload is missing type")
	case wire.ProofID == "":
		return Payload{}, dErrors.New(dErrors.CodeMalformedPayload, "payload is missing proofId")
	case wire.AddressHash == "":
		return Payload{}, dErrors.New(dErrors.CodeMalformedPayload, "payload is missing addressHash")
	}

	payloadType := PayloadType(wire.Type)
	if payloadType != PayloadTypeIdentity && payloadType != PayloadTypeAge {
		return Payload{}, dErrors.New(dErrors.CodeMalformedPayload, "payload type must be identity or age")
	}

	addressHash, err := hashing.ParseHex(wire.AddressHash)
	if err != nil {
		return Payload{}, dErrors.Wrap(dErrors.CodeMalformedPayload, "payload addressHash is not a valid hash", err)
	}

	payload := Payload{
		Type:        payloadType,
		ProofID:     wire.ProofID,
		AddressHash: addressHash,
	}
	if wire.CodeHash != "" {
		codeHash, err := hashing.ParseHex(wire.CodeHash)
		if err != nil {
			return Payload{}, dErrors.Wrap(dErrors.CodeMalformedPayload, "payload codeHash is not a valid hash", err)
		}
		payload.CodeHash = codeHash
		payload.HasCodeHash = true
	}
	return payload, nil
}

// Encode renders the payload as its JSON wire form.
func (p Payload) Encode() ([]byte, error) {
	wire := wirePayload{
		Type:        string(p.Type),
		ProofID:     p.ProofID,
		AddressHash: p.AddressHash.Hex(),
	}
	if p.HasCodeHash {
		wire.CodeHash = p.CodeHash.Hex()
	}
	return json.Marshal(wire)
}
