//go:build integration

package store_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"secureid/internal/domain"
	"secureid/internal/hashing"
	"secureid/internal/ledger"
	"secureid/internal/ledger/store"
	"secureid/pkg/platform/sentinel"
	"secureid/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
	s.Require().NoError(s.store.Migrate(context.Background()))
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	err := s.postgres.TruncateTables(ctx, "identities", "used_documents", "address_fingerprints", "proof_payloads")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) newParams(holder domain.Address, proofID, docRef string) ledger.CreateParams {
	addrFp, err := hashing.AddressFingerprint(holder)
	s.Require().NoError(err)
	docFp, err := hashing.DocumentFingerprint(docRef)
	s.Require().NoError(err)
	return ledger.CreateParams{
		Holder: holder,
		Record: domain.IdentityRecord{
			ProofID:    proofID,
			Commitment: "commit-" + proofID,
			IsAdult:    true,
			CreatedAt:  time.Now().UTC().Truncate(time.Microsecond),
		},
		AddressFingerprint:  addrFp,
		DocumentFingerprint: docFp,
		Payload:             `{"proofId":"` + proofID + `"}`,
	}
}

func (s *PostgresStoreSuite) TestCreateAndRoundTrip() {
	ctx := context.Background()
	holder := domain.Address("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	params := s.newParams(holder, "proof1", "DOC123")

	s.Require().NoError(s.store.CreateIdentity(ctx, params))

	record, err := s.store.GetIdentity(ctx, holder)
	s.Require().NoError(err)
	s.Equal(params.Record.ProofID, record.ProofID)
	s.Equal(params.Record.Commitment, record.Commitment)
	s.True(record.IsAdult)
	s.False(record.Deleted)
	s.WithinDuration(params.Record.CreatedAt, record.CreatedAt, time.Millisecond)

	used, err := s.store.IsDocumentUsed(ctx, params.DocumentFingerprint)
	s.Require().NoError(err)
	s.True(used)

	resolved, err := s.store.ResolveFingerprint(ctx, params.AddressFingerprint)
	s.Require().NoError(err)
	s.Equal(holder, resolved)

	payload, err := s.store.GetPayload(ctx, "proof1")
	s.Require().NoError(err)
	s.Equal(params.Payload, payload)
}

func (s *PostgresStoreSuite) TestActiveHolderConflicts() {
	ctx := context.Background()
	holder := domain.Address("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")

	s.Require().NoError(s.store.CreateIdentity(ctx, s.newParams(holder, "proof1", "DOC-"+uuid.NewString())))
	err := s.store.CreateIdentity(ctx, s.newParams(holder, "proof2", "DOC-"+uuid.NewString()))
	s.ErrorIs(err, sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestDocumentStaysUsedAfterDeletion() {
	ctx := context.Background()
	holder := domain.Address("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	other := domain.Address("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")

	s.Require().NoError(s.store.CreateIdentity(ctx, s.newParams(holder, "proof1", "DOC123")))
	s.Require().NoError(s.store.MarkDeleted(ctx, holder))

	err := s.store.CreateIdentity(ctx, s.newParams(other, "proof2", "DOC123"))
	s.ErrorIs(err, sentinel.ErrAlreadyUsed)

	// The deleted holder may recreate with a fresh document.
	s.Require().NoError(s.store.CreateIdentity(ctx, s.newParams(holder, "proof3", "DOC456")))
	record, err := s.store.GetIdentity(ctx, holder)
	s.Require().NoError(err)
	s.Equal("proof3", record.ProofID)
	s.False(record.Deleted)
}

// TestConcurrentDocumentClaims verifies the used_documents primary key
// serializes concurrent creations: exactly one claim on a contested
// fingerprint commits.
func (s *PostgresStoreSuite) TestConcurrentDocumentClaims() {
	ctx := context.Background()
	docRef := "DOC-contested-" + uuid.NewString()
	const goroutines = 25

	var wg sync.WaitGroup
	var successCount atomic.Int32
	var reuseCount atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			holder := domain.Address(fmt.Sprintf("0x%040x", idx))
			err := s.store.CreateIdentity(ctx, s.newParams(holder, fmt.Sprintf("proof-%d", idx), docRef))
			if err == nil {
				successCount.Add(1)
			} else if errors.Is(err, sentinel.ErrAlreadyUsed) {
				reuseCount.Add(1)
			}
		}(i)
	}

	wg.Wait()

	s.Equal(int32(1), successCount.Load(), "exactly one create should succeed")
	s.Equal(int32(goroutines-1), reuseCount.Load(), "all others should see document reuse")
}

func (s *PostgresStoreSuite) TestLivenessUpdateLifecycle() {
	ctx := context.Background()
	holder := domain.Address("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")

	s.ErrorIs(s.store.UpdateLiveness(ctx, holder, true, "{}"), sentinel.ErrNotFound)

	s.Require().NoError(s.store.CreateIdentity(ctx, s.newParams(holder, "proof1", "DOC123")))
	s.Require().NoError(s.store.UpdateLiveness(ctx, holder, true, `{"merged":true}`))

	record, err := s.store.GetIdentity(ctx, holder)
	s.Require().NoError(err)
	s.True(record.LivenessVerified)

	payload, err := s.store.GetPayload(ctx, "proof1")
	s.Require().NoError(err)
	s.Equal(`{"merged":true}`, payload)

	s.Require().NoError(s.store.MarkDeleted(ctx, holder))
	s.ErrorIs(s.store.UpdateLiveness(ctx, holder, false, "{}"), sentinel.ErrInvalidState)
}

func (s *PostgresStoreSuite) TestMarkDeletedDistinguishesStates() {
	ctx := context.Background()
	holder := domain.Address("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")

	s.ErrorIs(s.store.MarkDeleted(ctx, holder), sentinel.ErrNotFound)

	s.Require().NoError(s.store.CreateIdentity(ctx, s.newParams(holder, "proof1", "DOC123")))
	s.Require().NoError(s.store.MarkDeleted(ctx, holder))
	s.ErrorIs(s.store.MarkDeleted(ctx, holder), sentinel.ErrInvalidState)

	record, err := s.store.GetIdentity(ctx, holder)
	s.Require().NoError(err)
	s.True(record.Deleted)
}

func (s *PostgresStoreSuite) TestUnknownLookups() {
	ctx := context.Background()

	_, err := s.store.GetIdentity(ctx, domain.Address("0xcccccccccccccccccccccccccccccccccccccccc"))
	s.ErrorIs(err, sentinel.ErrNotFound)

	fp, err := hashing.Fingerprint("nobody-"+uuid.NewString(), hashing.TagString)
	s.Require().NoError(err)

	_, err = s.store.ResolveFingerprint(ctx, fp)
	s.ErrorIs(err, sentinel.ErrNotFound)

	used, err := s.store.IsDocumentUsed(ctx, fp)
	s.Require().NoError(err)
	s.False(used)

	payload, err := s.store.GetPayload(ctx, "missing")
	s.Require().NoError(err)
	s.Empty(payload)
}
