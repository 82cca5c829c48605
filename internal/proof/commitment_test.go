package proof

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

var testRecord = domain.DocumentRecord{
	FullName:    "Ada Lovelace",
	ReferenceID: "DOC123",
	AgeYears:    30,
}

func fixedClock() time.Time {
	return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func TestBuildIsReproducibleForSameSeed(t *testing.T) {
	builder := NewCommitmentBuilder(WithCommitmentClock(fixedClock))

	first, err := builder.Build(context.Background(), testRecord, true)
	require.NoError(t, err)
	second, err := builder.Build(context.Background(), testRecord, true)
	require.NoError(t, err)

	assert.Equal(t, first.ProofID, second.ProofID)
	assert.Equal(t, first.Commitment, second.Commitment)
	assert.True(t, first.PublicSignals.IsAdult)
	assert.True(t, first.PublicSignals.LivenessVerified)
}

func TestProofIDsDifferAcrossSeeds(t *testing.T) {
	builder := NewCommitmentBuilder(WithCommitmentClock(fixedClock))

	first, err := builder.Build(context.Background(), testRecord, true)
	require.NoError(t, err)

	other := testRecord
	other.ReferenceID = "DOC124"
	second, err := builder.Build(context.Background(), other, true)
	require.NoError(t, err)

	assert.NotEqual(t, first.ProofID, second.ProofID)
	assert.NotEqual(t, first.Commitment, second.Commitment)
}

func TestCommitmentBindsEveryInput(t *testing.T) {
	base := domain.IdentityAttributes{
		ReferenceSeed:    "DOC123",
		AgeYears:         30,
		IsAdult:          true,
		LivenessVerified: true,
	}
	baseline, err := Commit(base)
	require.NoError(t, err)

	variants := []domain.IdentityAttributes{
		{ReferenceSeed: "DOC124", AgeYears: 30, IsAdult: true, LivenessVerified: true},
		{ReferenceSeed: "DOC123", AgeYears: 31, IsAdult: true, LivenessVerified: true},
		{ReferenceSeed: "DOC123", AgeYears: 30, IsAdult: false, LivenessVerified: true},
		{ReferenceSeed: "DOC123", AgeYears: 30, IsAdult: true, LivenessVerified: false},
	}
	for _, attrs := range variants {
		got, err := Commit(attrs)
		require.NoError(t, err)
		assert.NotEqual(t, baseline, got)
	}
}

func TestBuildRejectsUnusableRecords(t *testing.T) {
	builder := NewCommitmentBuilder(WithCommitmentClock(fixedClock))

	_, err := builder.Build(context.Background(), domain.DocumentRecord{AgeYears: 30}, false)
	require.Error(t, err)
	assert.Equal(t, dErrors.CodeInvalidInput, dErrors.CodeOf(err))

	_, err = builder.Build(context.Background(), domain.DocumentRecord{ReferenceID: "DOC123"}, false)
	require.Error(t, err)
	assert.Equal(t, dErrors.CodeInvalidInput, dErrors.CodeOf(err))
}

func TestBuildFallsBackToNameSeed(t *testing.T) {
	builder := NewCommitmentBuilder(WithCommitmentClock(fixedClock))

	record := domain.DocumentRecord{FullName: "Ada Lovelace", AgeYears: 30}
	result, err := builder.Build(context.Background(), record, false)
	require.NoError(t, err)

	wantID, err := DeriveProofID("Ada Lovelace")
	require.NoError(t, err)
	assert.Equal(t, wantID, result.ProofID)
}

func TestBuildDerivesAgeFromDateOfBirth(t *testing.T) {
	builder := NewCommitmentBuilder(WithCommitmentClock(fixedClock))

	minor := domain.DocumentRecord{ReferenceID: "DOC200", DateOfBirth: "2010-06-15"}
	result, err := builder.Build(context.Background(), minor, false)
	require.NoError(t, err)
	assert.False(t, result.PublicSignals.IsAdult)

	adult := domain.DocumentRecord{ReferenceID: "DOC201", DateOfBirth: "1990-06-15"}
	result, err = builder.Build(context.Background(), adult, false)
	require.NoError(t, err)
	assert.True(t, result.PublicSignals.IsAdult)
}

func TestPayloadIsSelfDescribing(t *testing.T) {
	builder := NewCommitmentBuilder(WithCommitmentClock(fixedClock))

	result, err := builder.Build(context.Background(), testRecord, true)
	require.NoError(t, err)

	var bundle map[string]any
	require.NoError(t, json.Unmarshal([]byte(result.Payload), &bundle))
	assert.Equal(t, "commitment-v1", bundle["protocol"])
	assert.Contains(t, bundle, "proof")
	assert.Contains(t, bundle, "publicSignals")
}
