package holder_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"

	"secureid/internal/domain"
	"secureid/internal/holder"
	"secureid/internal/ledger"
	"secureid/internal/ledger/metrics"
	ledgerstore "secureid/internal/ledger/store"
	"secureid/internal/liveness"
	"secureid/internal/proof"
	"secureid/internal/vericode"
	"secureid/internal/verify"
)

const testHolder = domain.Address("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")

type nopSink struct{}

func (nopSink) Emit(context.Context, domain.Event) error { return nil }

// HolderFlowSuite exercises the holder service against a real ledger and
// in-memory stores, end to end through the verifier protocol.
type HolderFlowSuite struct {
	suite.Suite
	ctx      context.Context
	now      time.Time
	alive    bool
	ledger   *ledger.Service
	bindings *vericode.InMemoryBindingStore
	service  *holder.Service
}

func TestHolderFlowSuite(t *testing.T) {
	suite.Run(t, new(HolderFlowSuite))
}

func (s *HolderFlowSuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.alive = true
	clock := func() time.Time { return s.now }

	s.ledger = ledger.NewService(
		ledgerstore.NewInMemoryStore(),
		nopSink{},
		metrics.New(prometheus.NewRegistry()),
		slog.New(slog.DiscardHandler),
		ledger.WithClock(clock),
	)
	s.bindings = vericode.NewInMemoryBindingStore(vericode.WithMemoryClock(clock))
	s.service = holder.NewService(
		proof.NewCommitmentBuilder(proof.WithCommitmentClock(clock)),
		s.ledger,
		vericode.NewIssuer(vericode.WithClock(clock)),
		s.bindings,
		slog.New(slog.DiscardHandler),
		holder.WithClock(clock),
		holder.WithLivenessChecker(liveness.Func(func(context.Context) (bool, error) {
			return s.alive, nil
		})),
	)
}

func (s *HolderFlowSuite) document() domain.DocumentRecord {
	return domain.DocumentRecord{
		FullName:    "Ada Lovelace",
		ReferenceID: "DOC123",
		DateOfBirth: "1998-12-10",
	}
}

func (s *HolderFlowSuite) TestEnrollAnchorsIdentity() {
	result, err := s.service.Enroll(s.ctx, testHolder, s.document())
	s.Require().NoError(err)
	s.NotEmpty(result.ProofID)
	s.True(result.PublicSignals.IsAdult)
	s.True(result.PublicSignals.LivenessVerified)

	record, err := s.ledger.GetIdentity(s.ctx, testHolder)
	s.Require().NoError(err)
	s.Equal(result.ProofID, record.ProofID)
	s.True(record.LivenessVerified)
}

func (s *HolderFlowSuite) TestEnrollTwiceNeedsDeletion() {
	_, err := s.service.Enroll(s.ctx, testHolder, s.document())
	s.Require().NoError(err)

	other := s.document()
	other.ReferenceID = "DOC456"
	_, err = s.service.Enroll(s.ctx, testHolder, other)
	s.Require().ErrorIs(err, ledger.ErrDuplicateIdentity)

	s.Require().NoError(s.service.Unenroll(s.ctx, testHolder))

	// The spent document stays spent; a fresh one works.
	_, err = s.service.Enroll(s.ctx, testHolder, s.document())
	s.Require().ErrorIs(err, ledger.ErrDocumentReused)
	_, err = s.service.Enroll(s.ctx, testHolder, other)
	s.Require().NoError(err)
}

func (s *HolderFlowSuite) TestRefreshLivenessPushesSignal() {
	s.alive = false
	_, err := s.service.Enroll(s.ctx, testHolder, s.document())
	s.Require().NoError(err)

	record, err := s.ledger.GetIdentity(s.ctx, testHolder)
	s.Require().NoError(err)
	s.False(record.LivenessVerified)

	s.alive = true
	alive, err := s.service.RefreshLiveness(s.ctx, testHolder)
	s.Require().NoError(err)
	s.True(alive)

	record, err = s.ledger.GetIdentity(s.ctx, testHolder)
	s.Require().NoError(err)
	s.True(record.LivenessVerified)
}

func (s *HolderFlowSuite) TestCodeLifecycle() {
	s.Run("no code issued yet", func() {
		_, err := s.service.ActiveCode(s.ctx, testHolder)
		s.Require().ErrorIs(err, holder.ErrNoActiveCode)
	})

	binding, err := s.service.IssueCode(s.ctx, testHolder)
	s.Require().NoError(err)
	s.Regexp(`^[0-9]{6}$`, binding.Code)

	s.Run("active within the window", func() {
		active, err := s.service.ActiveCode(s.ctx, testHolder)
		s.Require().NoError(err)
		s.Equal(binding.Code, active.Code)
	})

	s.Run("re-issue supersedes", func() {
		fresh, err := s.service.IssueCode(s.ctx, testHolder)
		s.Require().NoError(err)
		active, err := s.service.ActiveCode(s.ctx, testHolder)
		s.Require().NoError(err)
		s.Equal(fresh.CodeHash, active.CodeHash)
	})

	s.Run("expired after the window", func() {
		s.now = s.now.Add(vericode.CodeTTL + time.Second)
		_, err := s.service.ActiveCode(s.ctx, testHolder)
		s.Require().ErrorIs(err, holder.ErrCodeExpired)
	})
}

func (s *HolderFlowSuite) TestRenderPayloadRequiresIdentityAndCode() {
	_, err := s.service.RenderPayload(s.ctx, testHolder, verify.PayloadTypeIdentity)
	s.Require().ErrorIs(err, holder.ErrNoIdentity)

	_, err = s.service.Enroll(s.ctx, testHolder, s.document())
	s.Require().NoError(err)

	_, err = s.service.RenderPayload(s.ctx, testHolder, verify.PayloadTypeIdentity)
	s.Require().ErrorIs(err, holder.ErrNoActiveCode)

	s.Require().NoError(s.service.Unenroll(s.ctx, testHolder))
	_, err = s.service.RenderPayload(s.ctx, testHolder, verify.PayloadTypeIdentity)
	s.Require().ErrorIs(err, holder.ErrIdentityDeleted)
}

// TestFullVerificationRoundTrip walks the whole protocol: enroll, issue a
// code, render the payload, then verify as a third party would.
func (s *HolderFlowSuite) TestFullVerificationRoundTrip() {
	_, err := s.service.Enroll(s.ctx, testHolder, s.document())
	s.Require().NoError(err)

	binding, err := s.service.IssueCode(s.ctx, testHolder)
	s.Require().NoError(err)

	payload, err := s.service.RenderPayload(s.ctx, testHolder, verify.PayloadTypeAge)
	s.Require().NoError(err)

	attempt := verify.NewAttempt(s.ledger)
	s.Require().NoError(attempt.EnterCode(binding.Code))
	s.Require().NoError(attempt.ScanPayload([]byte(payload)))

	verified, err := attempt.Verify(s.ctx)
	s.Require().NoError(err)
	s.True(verified)
	s.Require().NoError(attempt.LogOutcome(s.ctx))

	s.Run("wrong code fails a fresh attempt", func() {
		wrongCode := "000000"
		if binding.Code == wrongCode {
			wrongCode = "000001"
		}
		attempt := verify.NewAttempt(s.ledger)
		s.Require().NoError(attempt.EnterCode(wrongCode))
		s.Require().NoError(attempt.ScanPayload([]byte(payload)))
		verified, err := attempt.Verify(s.ctx)
		s.Require().NoError(err)
		s.False(verified)
	})
}
