package domain

import (
	"fmt"
	"strings"
	"time"
)

// Address is a holder's canonical ledger address: 0x followed by 40 hex
// characters. Fingerprints over addresses hash the raw 20 bytes, so the
// canonical form matters; NormalizeAddress must be applied before hashing.
type Address string

// NormalizeAddress lowercases an address and ensures the 0x prefix.
// Returns an error when the value is not a 20-byte hex address.
func NormalizeAddress(raw string) (Address, error) {
	s := strings.TrimSpace(strings.ToLower(raw))
	s = strings.TrimPrefix(s, "0x")
	if len(s) != 40 {
		return "", fmt.Errorf("address must be 20 bytes of hex, got %d chars", len(s))
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return "", fmt.Errorf("address contains non-hex character %q", c)
		}
	}
	return Address("0x" + s), nil
}

func (a Address) String() string { return string(a) }

// IdentityRecord is the ledger-resident identity slot for one holder.
// CreatedAt is set once at creation; Deleted only ever flips false to true.
type IdentityRecord struct {
	ProofID          string
	Commitment       string
	IsAdult          bool
	LivenessVerified bool
	CreatedAt        time.Time
	Deleted          bool
}

// Exists reports whether the record represents a stored identity. The ledger
// returns a zero record rather than an error when a holder has none, so
// callers treat an empty ProofID as "no identity".
func (r IdentityRecord) Exists() bool { return r.ProofID != "" }

// IdentityAttributes is the tagged private-attribute tuple a commitment
// binds. It never leaves the holder side; only the commitment and the public
// signals derived from it reach the ledger.
type IdentityAttributes struct {
	ReferenceSeed    string
	AgeYears         int
	IsAdult          bool
	LivenessVerified bool
}

// PublicSignals are the booleans a proof intentionally discloses.
type PublicSignals struct {
	IsAdult          bool `json:"isAdult"`
	LivenessVerified bool `json:"livenessVerified"`
}
