package liveness_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"secureid/internal/liveness"
)

// fakeSession serves scripted frames and counts Close calls.
type fakeSession struct {
	frames  []liveness.Frame
	nextErr error
	served  int
	closed  int
}

func (s *fakeSession) Next(ctx context.Context) (liveness.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.nextErr != nil {
		return nil, s.nextErr
	}
	if s.served >= len(s.frames) {
		return nil, liveness.ErrNoFrames
	}
	frame := s.frames[s.served]
	s.served++
	return frame, nil
}

func (s *fakeSession) Close() error {
	s.closed++
	return nil
}

type fakeSource struct {
	session *fakeSession
	openErr error
}

func (s *fakeSource) Open(context.Context) (liveness.Session, error) {
	if s.openErr != nil {
		return nil, s.openErr
	}
	return s.session, nil
}

func frames(n int) []liveness.Frame {
	out := make([]liveness.Frame, n)
	for i := range out {
		out[i] = liveness.Frame{byte(i)}
	}
	return out
}

type scriptedEvaluator struct {
	results []bool
	err     error
	calls   int
}

func (e *scriptedEvaluator) Evaluate(_ context.Context, _ liveness.Challenge, _ liveness.Frame) (bool, error) {
	if e.err != nil {
		return false, e.err
	}
	result := e.results[e.calls%len(e.results)]
	e.calls++
	return result, nil
}

func TestChallengeCheckerAllRoundsMustPass(t *testing.T) {
	session := &fakeSession{frames: frames(3)}
	checker := liveness.NewChallengeChecker(&fakeSource{session: session}, &scriptedEvaluator{results: []bool{true}}, 3)

	alive, err := checker.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, alive)
	assert.Equal(t, 1, session.closed, "session must be released")
}

func TestChallengeCheckerFailsOnFirstMiss(t *testing.T) {
	session := &fakeSession{frames: frames(3)}
	evaluator := &scriptedEvaluator{results: []bool{true, false, true}}
	checker := liveness.NewChallengeChecker(&fakeSource{session: session}, evaluator, 3)

	alive, err := checker.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, alive)
	assert.Equal(t, 2, evaluator.calls, "check stops at the first failed challenge")
	assert.Equal(t, 1, session.closed)
}

func TestCheckerReleasesSessionOnError(t *testing.T) {
	session := &fakeSession{frames: frames(3)}
	checker := liveness.NewChallengeChecker(&fakeSource{session: session}, &scriptedEvaluator{err: assert.AnError}, 2)

	_, err := checker.Run(context.Background())
	require.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 1, session.closed, "session must be released on evaluator failure")
}

func TestCheckerReleasesSessionOnCancellation(t *testing.T) {
	session := &fakeSession{frames: frames(10)}
	checker := liveness.NewMotionChecker(&fakeSource{session: session}, func(_, _ liveness.Frame) float64 { return 1 }, 5, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := checker.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, session.closed, "session must be released on cancellation")
}

func TestCheckerOpenFailure(t *testing.T) {
	checker := liveness.NewModelChecker(&fakeSource{openErr: errors.New("camera busy")}, nil, 1, 0.5)

	_, err := checker.Run(context.Background())
	require.Error(t, err)
}

func TestMotionCheckerThreshold(t *testing.T) {
	score := func(prev, current liveness.Frame) float64 {
		if prev[0] == current[0] {
			return 0
		}
		return 1
	}

	t.Run("moving frames pass", func(t *testing.T) {
		session := &fakeSession{frames: frames(4)}
		checker := liveness.NewMotionChecker(&fakeSource{session: session}, score, 4, 2)
		alive, err := checker.Run(context.Background())
		require.NoError(t, err)
		assert.True(t, alive)
	})

	t.Run("static replay fails", func(t *testing.T) {
		static := []liveness.Frame{{7}, {7}, {7}, {7}}
		session := &fakeSession{frames: static}
		checker := liveness.NewMotionChecker(&fakeSource{session: session}, score, 4, 2)
		alive, err := checker.Run(context.Background())
		require.NoError(t, err)
		assert.False(t, alive)
	})
}

type fixedModel struct{ scores []float64 }

func (m *fixedModel) Score(_ context.Context, frame liveness.Frame) (float64, error) {
	return m.scores[int(frame[0])%len(m.scores)], nil
}

func TestModelCheckerAveragesScores(t *testing.T) {
	session := &fakeSession{frames: frames(3)}
	checker := liveness.NewModelChecker(&fakeSource{session: session}, &fixedModel{scores: []float64{0.9, 0.8, 0.7}}, 3, 0.75)

	alive, err := checker.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, alive)

	session = &fakeSession{frames: frames(3)}
	checker = liveness.NewModelChecker(&fakeSource{session: session}, &fixedModel{scores: []float64{0.2, 0.3, 0.1}}, 3, 0.75)
	alive, err = checker.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, alive)
}

func TestExhaustedSessionSurfacesError(t *testing.T) {
	session := &fakeSession{frames: frames(1)}
	checker := liveness.NewModelChecker(&fakeSource{session: session}, &fixedModel{scores: []float64{1}}, 3, 0.5)

	_, err := checker.Run(context.Background())
	require.ErrorIs(t, err, liveness.ErrNoFrames)
	assert.Equal(t, 1, session.closed)
}
