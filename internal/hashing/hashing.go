// Package hashing provides the deterministic one-way fingerprint primitives
// the ledger and its callers share. A verifier and the ledger must compute
// byte-identical encodings to agree on a fingerprint, so every value is
// byte-encoded according to its type tag before hashing: a 20-byte address
// hashes its raw bytes, never its hex text.
package hashing

import (
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"

	"secureid/internal/domain"
)

// Tag selects the canonical byte encoding applied before hashing.
type Tag string

const (
	// TagAddress encodes a canonical 0x-prefixed address as its raw 20 bytes.
	TagAddress Tag = "address"
	// TagString encodes a non-empty value as its raw UTF-8 bytes.
	TagString Tag = "string"
)

// Hash is a keccak-256 digest.
type Hash [32]byte

// Hex renders the digest as a 0x-prefixed lowercase hex string, the form
// embedded in portable payloads.
func (h Hash) Hex() string {
	return "0x" + hex.EncodeToString(h[:])
}

// Equal reports digest equality.
func (h Hash) Equal(other Hash) bool { return h == other }

// MarshalText renders the digest in its 0x-prefixed hex form so hashes embed
// naturally in JSON payloads.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.Hex()), nil
}

// UnmarshalText parses a digest from hex, accepting both prefix forms.
func (h *Hash) UnmarshalText(text []byte) error {
	parsed, err := ParseHex(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// ParseHex parses a digest from hex, accepting both 0x-prefixed and bare
// forms. Payload producers are inconsistent about the prefix, so consumers
// normalize here before comparing.
func ParseHex(s string) (Hash, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(strings.ToLower(s)), "0x")
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return Hash{}, fmt.Errorf("parse hash hex: %w", err)
	}
	if len(raw) != 32 {
		return Hash{}, fmt.Errorf("hash must be 32 bytes, got %d", len(raw))
	}
	var h Hash
	copy(h[:], raw)
	return h, nil
}

// Fingerprint hashes value under the encoding selected by tag.
func Fingerprint(value string, tag Tag) (Hash, error) {
	encoded, err := encode(value, tag)
	if err != nil {
		return Hash{}, err
	}
	return keccak(encoded), nil
}

// AddressFingerprint is the one-way reference to a holder address.
func AddressFingerprint(holder domain.Address) (Hash, error) {
	return Fingerprint(holder.String(), TagAddress)
}

// DocumentFingerprint derives the reuse-check fingerprint of a physical
// document's reference number. Creation and reuse-check paths both go
// through here so the encoding can never diverge.
func DocumentFingerprint(referenceID string) (Hash, error) {
	return Fingerprint(referenceID, TagString)
}

// CodeBinding binds a verification code to a holder address:
// keccak(codeBytes ++ ':' ++ addressBytes). The component order is fixed;
// reordering would invalidate every payload already in circulation.
func CodeBinding(code string, holder domain.Address) (Hash, error) {
	codeBytes, err := encode(code, TagString)
	if err != nil {
		return Hash{}, fmt.Errorf("encode code: %w", err)
	}
	addrBytes, err := encode(holder.String(), TagAddress)
	if err != nil {
		return Hash{}, fmt.Errorf("encode holder: %w", err)
	}
	packed := make([]byte, 0, len(codeBytes)+1+len(addrBytes))
	packed = append(packed, codeBytes...)
	packed = append(packed, ':')
	packed = append(packed, addrBytes...)
	return keccak(packed), nil
}

func encode(value string, tag Tag) ([]byte, error) {
	switch tag {
	case TagAddress:
		addr, err := domain.NormalizeAddress(value)
		if err != nil {
			return nil, fmt.Errorf("encode address: %w", err)
		}
		raw, err := hex.DecodeString(strings.TrimPrefix(addr.String(), "0x"))
		if err != nil {
			return nil, fmt.Errorf("decode address hex: %w", err)
		}
		return raw, nil
	case TagString:
		if value == "" {
			return nil, fmt.Errorf("string value must not be empty")
		}
		return []byte(value), nil
	default:
		return nil, fmt.Errorf("unknown type tag %q", tag)
	}
}

func keccak(data []byte) Hash {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}
