// Package audit keeps the append-only trail of ledger events: identity
// creation, liveness updates, deletion and verification. Events arrive over a
// channel so ledger mutations never block on audit persistence.
package audit

import (
	"time"

	"secureid/internal/domain"
)

// Record is the persisted form of one ledger event.
type Record struct {
	ID               string           `json:"id"`
	Kind             domain.EventKind `json:"kind"`
	Holder           domain.Address   `json:"holder"`
	ProofID          string           `json:"proofId"`
	IsAdult          bool             `json:"isAdult"`
	LivenessVerified bool             `json:"livenessVerified"`
	Timestamp        time.Time        `json:"timestamp"`
	RecordedAt       time.Time        `json:"recordedAt"`
}

// fromEvent converts a ledger event into its audit record.
func fromEvent(event domain.Event, recordedAt time.Time) Record {
	return Record{
		ID:               event.ID,
		Kind:             event.Kind,
		Holder:           event.Holder,
		ProofID:          event.ProofID,
		IsAdult:          event.IsAdult,
		LivenessVerified: event.LivenessVerified,
		Timestamp:        event.Timestamp,
		RecordedAt:       recordedAt,
	}
}
