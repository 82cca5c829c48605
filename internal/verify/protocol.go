package verify

import (
	"context"
	"regexp"

	dErrors "secureid/pkg/domain-errors"

	"secureid/internal/hashing"
)

// State of one verification attempt. Attempts move strictly forward; Verified
// and Failed are terminal, and a fresh attempt restarts from the beginning.
type State string

const (
	StateNew            State = "new"
	StateCodeEntered    State = "code_entered"
	StatePayloadScanned State = "payload_scanned"
	StateVerified       State = "verified"
	StateFailed         State = "failed"
)

var (
	ErrInvalidCode     = dErrors.New(dErrors.CodeInvalidInput, "verification code must be six decimal digits")
	ErrMissingCodeHash = dErrors.New(dErrors.CodeMalformedPayload, "payload has no codeHash; code-based verification needs one")
	ErrOutOfOrder      = dErrors.New(dErrors.CodeConflict, "verification step out of order")
	ErrAttemptFinished = dErrors.New(dErrors.CodeConflict, "verification attempt already finished; start a new one")
)

var codePattern = regexp.MustCompile(`^[0-9]{6}$`)

// Ledger is the slice of ledger behavior a verifier needs.
type Ledger interface {
	VerifyByCodeHash(ctx context.Context, proofID string, addressFingerprint hashing.Hash, code string, codeHash hashing.Hash) (bool, error)
	LogVerificationEvent(ctx context.Context, proofID string, addressFingerprint hashing.Hash) error
}

// Attempt drives one verification from code entry to a terminal outcome.
// Not safe for concurrent use; each verifier interaction gets its own.
type Attempt struct {
	ledger  Ledger
	state   State
	code    string
	payload Payload
}

// NewAttempt starts a fresh verification attempt against the ledger.
func NewAttempt(ledger Ledger) *Attempt {
	return &Attempt{ledger: ledger, state: StateNew}
}

// State reports the attempt's current position in the protocol.
func (a *Attempt) State() State {
	return a.state
}

// PayloadType reports what claim the scanned payload asked for. Zero until a
// payload has been scanned.
func (a *Attempt) PayloadType() PayloadType {
	return a.payload.Type
}

// EnterCode records the code the holder shared out-of-band. First step of
// every attempt.
func (a *Attempt) EnterCode(code string) error {
	if a.state != StateNew {
		return a.orderError()
	}
	if !codePattern.MatchString(code) {
		return ErrInvalidCode
	}
	a.code = code
	a.state = StateCodeEntered
	return nil
}

// ScanPayload parses the scanned payload. Requires a prior EnterCode and a
// payload carrying a codeHash.
func (a *Attempt) ScanPayload(data []byte) error {
	if a.state != StateCodeEntered {
		return a.orderError()
	}
	payload, err := ParsePayload(data)
	if err != nil {
		return err
	}
	if !payload.HasCodeHash {
		return ErrMissingCodeHash
	}
	a.payload = payload
	a.state = StatePayloadScanned
	return nil
}

// Verify asks the ledger whether the scanned payload and entered code match
// the holder's record. The attempt ends here either way: a false result or a
// ledger error is a terminal Failed, a true result is Verified. Ledger state
// is never mutated.
func (a *Attempt) Verify(ctx context.Context) (bool, error) {
	if a.state != StatePayloadScanned {
		return false, a.orderError()
	}
	verified, err := a.ledger.VerifyByCodeHash(ctx, a.payload.ProofID, a.payload.AddressHash, a.code, a.payload.CodeHash)
	if err != nil {
		a.state = StateFailed
		return false, err
	}
	if !verified {
		a.state = StateFailed
		return false, nil
	}
	a.state = StateVerified
	return true, nil
}

// LogOutcome records the verification event on the ledger. Only a verified
// attempt has an outcome worth logging.
func (a *Attempt) LogOutcome(ctx context.Context) error {
	if a.state != StateVerified {
		return a.orderError()
	}
	return a.ledger.LogVerificationEvent(ctx, a.payload.ProofID, a.payload.AddressHash)
}

func (a *Attempt) orderError() error {
	if a.state == StateVerified || a.state == StateFailed {
		return ErrAttemptFinished
	}
	return ErrOutOfOrder
}
