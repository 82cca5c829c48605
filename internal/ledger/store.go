package ledger

import (
	"context"

	"secureid/internal/domain"
	"secureid/internal/hashing"
)

// CreateParams bundles the four effects of storing an identity: the record
// itself, the document fingerprint to mark used, the address fingerprint
// mapping and the opaque proof payload. Stores apply all of them atomically
// or none.
type CreateParams struct {
	Holder              domain.Address
	Record              domain.IdentityRecord
	AddressFingerprint  hashing.Hash
	DocumentFingerprint hashing.Hash
	Payload             string
}

// Store is the persistence boundary of the ledger. Implementations return
// sentinel errors (pkg/platform/sentinel); the service translates them into
// domain errors.
//
// CreateIdentity must serialize concurrent attempts on the same document
// fingerprint so exactly one succeeds; it returns sentinel.ErrAlreadyUsed
// for a used document and sentinel.ErrConflict for a holder with an active
// identity.
type Store interface {
	CreateIdentity(ctx context.Context, params CreateParams) error
	GetIdentity(ctx context.Context, holder domain.Address) (domain.IdentityRecord, error)
	UpdateLiveness(ctx context.Context, holder domain.Address, liveness bool, payload string) error
	MarkDeleted(ctx context.Context, holder domain.Address) error
	GetPayload(ctx context.Context, proofID string) (string, error)
	IsDocumentUsed(ctx context.Context, fingerprint hashing.Hash) (bool, error)
	ResolveFingerprint(ctx context.Context, fingerprint hashing.Hash) (domain.Address, error)
}
