package domain

import "time"

// EventKind enumerates the observable ledger mutations.
type EventKind string

const (
	EventIdentityCreated  EventKind = "identity_created"
	EventLivenessUpdated  EventKind = "liveness_updated"
	EventIdentityDeleted  EventKind = "identity_deleted"
	EventIdentityVerified EventKind = "identity_verified"
)

// Event is emitted by mutating ledger operations. Keep it transport-agnostic
// so stores and sinks can fan out.
type Event struct {
	ID               string
	Kind             EventKind
	Holder           Address
	ProofID          string
	IsAdult          bool
	LivenessVerified bool
	Timestamp        time.Time
}
