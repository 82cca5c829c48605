package zk

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "secureid/pkg/domain-errors"

	"secureid/internal/domain"
)

// Setup dominates the runtime here; everything shares one prover.
func newTestProver(t *testing.T) *Prover {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping groth16 setup in short mode")
	}
	prover, err := NewProver(WithProverClock(func() time.Time {
		return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	}))
	require.NoError(t, err)
	return prover
}

func TestProveAndVerifyRoundTrip(t *testing.T) {
	prover := newTestProver(t)

	record := domain.DocumentRecord{ReferenceID: "DOC123", AgeYears: 30}
	result, err := prover.Build(context.Background(), record, true)
	require.NoError(t, err)
	require.NotEmpty(t, result.ProofID)
	assert.True(t, result.PublicSignals.IsAdult)

	ok, err := prover.Verify(result.Payload)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyRejectsTamperedPublicInputs(t *testing.T) {
	prover := newTestProver(t)

	record := domain.DocumentRecord{ReferenceID: "DOC123", AgeYears: 30}
	result, err := prover.Build(context.Background(), record, false)
	require.NoError(t, err)

	var bundle zkBundle
	require.NoError(t, json.Unmarshal([]byte(result.Payload), &bundle))
	bundle.PublicInputs[2] = "1" // claim liveness that was never proven
	tampered, err := json.Marshal(bundle)
	require.NoError(t, err)

	ok, err := prover.Verify(string(tampered))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBuildRejectsMinors(t *testing.T) {
	prover := newTestProver(t)

	record := domain.DocumentRecord{ReferenceID: "DOC123", AgeYears: 15}
	_, err := prover.Build(context.Background(), record, false)
	require.Error(t, err)
	assert.Equal(t, dErrors.CodeInvalidInput, dErrors.CodeOf(err))
}

func TestVerifyRejectsMalformedBundles(t *testing.T) {
	prover := newTestProver(t)

	_, err := prover.Verify("not-json")
	require.Error(t, err)
	assert.Equal(t, dErrors.CodeMalformedPayload, dErrors.CodeOf(err))

	_, err = prover.Verify(`{"version":1,"protocol":"groth16-bn254","proof":"!!","publicInputs":["1","2","3"]}`)
	require.Error(t, err)
	assert.Equal(t, dErrors.CodeMalformedPayload, dErrors.CodeOf(err))
}
