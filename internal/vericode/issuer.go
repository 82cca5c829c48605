// Package vericode issues short-lived verification codes bound to holder
// addresses. The ledger only ever sees the code hash; the code itself travels
// out-of-band from holder to verifier, and expiry is a caller-side policy
// enforced against the issued binding, never by the ledger.
package vericode

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"time"

	"secureid/internal/domain"
	"secureid/internal/hashing"
)

// CodeTTL is the advisory validity window of an issued code.
const CodeTTL = 5 * time.Minute

var codeSpace = big.NewInt(1000000)

// Binding is the issuance output the holder keeps. It is never persisted on
// the ledger.
type Binding struct {
	Code               string         `json:"code"`
	CodeHash           hashing.Hash   `json:"code_hash"`
	AddressFingerprint hashing.Hash   `json:"address_fingerprint"`
	Holder             domain.Address `json:"holder"`
	IssuedAt           time.Time      `json:"issued_at"`
	ExpiresAt          time.Time      `json:"expires_at"`
}

// Expired reports whether the binding has passed its validity window.
func (b Binding) Expired(now time.Time) bool {
	return now.After(b.ExpiresAt)
}

// Clock abstracts time.Now for testability.
type Clock func() time.Time

// Issuer generates holder-bound verification codes. It is stateless; callers
// hold the returned binding themselves. Re-issuing never invalidates a prior
// code here — callers must discard the old binding.
type Issuer struct {
	ttl    time.Duration
	clock  Clock
	random io.Reader
}

// Option configures an Issuer.
type Option func(*Issuer)

// WithClock sets the clock function for testability.
func WithClock(clock Clock) Option {
	return func(i *Issuer) {
		if clock != nil {
			i.clock = clock
		}
	}
}

// WithTTL overrides the advisory validity window.
func WithTTL(ttl time.Duration) Option {
	return func(i *Issuer) {
		if ttl > 0 {
			i.ttl = ttl
		}
	}
}

// WithRandom sets the entropy source for testability.
func WithRandom(r io.Reader) Option {
	return func(i *Issuer) {
		if r != nil {
			i.random = r
		}
	}
}

// NewIssuer constructs an Issuer with the default 5 minute window.
func NewIssuer(opts ...Option) *Issuer {
	issuer := &Issuer{
		ttl:    CodeTTL,
		clock:  time.Now,
		random: rand.Reader,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(issuer)
		}
	}
	return issuer
}

// Issue generates a uniformly random 6-digit code for holder and binds it via
// the composite code hash. Leading zeros are preserved: the code space is
// exactly 000000 through 999999.
func (i *Issuer) Issue(holder domain.Address) (Binding, error) {
	normalized, err := domain.NormalizeAddress(holder.String())
	if err != nil {
		return Binding{}, fmt.Errorf("issue code: %w", err)
	}

	n, err := rand.Int(i.random, codeSpace)
	if err != nil {
		return Binding{}, fmt.Errorf("generate code: %w", err)
	}
	code := fmt.Sprintf("%06d", n.Int64())

	codeHash, err := hashing.CodeBinding(code, normalized)
	if err != nil {
		return Binding{}, fmt.Errorf("bind code: %w", err)
	}
	addrFingerprint, err := hashing.AddressFingerprint(normalized)
	if err != nil {
		return Binding{}, fmt.Errorf("fingerprint holder: %w", err)
	}

	issuedAt := i.clock()
	return Binding{
		Code:               code,
		CodeHash:           codeHash,
		AddressFingerprint: addrFingerprint,
		Holder:             normalized,
		IssuedAt:           issuedAt,
		ExpiresAt:          issuedAt.Add(i.ttl),
	}, nil
}
