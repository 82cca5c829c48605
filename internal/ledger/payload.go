package ledger

import (
	"encoding/json"
	"time"
)

// livenessUpdate is one appended entry in the payload's update history.
type livenessUpdate struct {
	LivenessVerified bool      `json:"livenessVerified"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// MergeLiveness folds a new liveness status into a stored proof payload
// without destroying prior content. JSON payloads get the updated flag and an
// appended history entry; anything else is preserved verbatim under an
// "original" key so no byte of the prior payload is lost.
func MergeLiveness(payload string, liveness bool, at time.Time) (string, error) {
	var doc map[string]any
	if err := json.Unmarshal([]byte(payload), &doc); err != nil || doc == nil {
		doc = map[string]any{"original": payload}
	}

	doc["livenessVerified"] = liveness

	history, _ := doc["livenessUpdates"].([]any)
	history = append(history, livenessUpdate{LivenessVerified: liveness, UpdatedAt: at.UTC()})
	doc["livenessUpdates"] = history

	if signals, ok := doc["publicSignals"].(map[string]any); ok {
		signals["livenessVerified"] = liveness
		doc["publicSignals"] = signals
	}

	merged, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	return string(merged), nil
}
