package liveness

import (
	"context"
	"crypto/rand"
	"math/big"
)

// Challenge names an action the subject is asked to perform.
type Challenge string

// DefaultChallenges is the built-in challenge pool.
var DefaultChallenges = []Challenge{"blink", "turn_left", "turn_right", "nod", "smile"}

// Evaluator judges whether a frame satisfies a challenge.
type Evaluator interface {
	Evaluate(ctx context.Context, challenge Challenge, frame Frame) (bool, error)
}

// ChallengeChecker asks the subject to perform randomly chosen challenges and
// passes only when every one is satisfied.
type ChallengeChecker struct {
	source     Source
	evaluator  Evaluator
	challenges []Challenge
	rounds     int
}

// NewChallengeChecker builds a challenge-response checker running the given
// number of rounds from the default pool.
func NewChallengeChecker(source Source, evaluator Evaluator, rounds int) *ChallengeChecker {
	if rounds < 1 {
		rounds = 1
	}
	return &ChallengeChecker{
		source:     source,
		evaluator:  evaluator,
		challenges: DefaultChallenges,
		rounds:     rounds,
	}
}

func (c *ChallengeChecker) Run(ctx context.Context) (bool, error) {
	return withSession(ctx, c.source, func(session Session) (bool, error) {
		for i := 0; i < c.rounds; i++ {
			challenge, err := c.pick()
			if err != nil {
				return false, err
			}
			frame, err := session.Next(ctx)
			if err != nil {
				return false, err
			}
			ok, err := c.evaluator.Evaluate(ctx, challenge, frame)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	})
}

func (c *ChallengeChecker) pick() (Challenge, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(c.challenges))))
	if err != nil {
		return "", err
	}
	return c.challenges[n.Int64()], nil
}

// MotionScorer measures movement between two consecutive frames.
type MotionScorer func(prev, current Frame) float64

// MotionChecker samples consecutive frames and passes when the accumulated
// motion clears the threshold. A static replay scores near zero.
type MotionChecker struct {
	source    Source
	score     MotionScorer
	samples   int
	threshold float64
}

// NewMotionChecker builds a motion checker over the given sample count.
func NewMotionChecker(source Source, score MotionScorer, samples int, threshold float64) *MotionChecker {
	if samples < 2 {
		samples = 2
	}
	return &MotionChecker{source: source, score: score, samples: samples, threshold: threshold}
}

func (c *MotionChecker) Run(ctx context.Context) (bool, error) {
	return withSession(ctx, c.source, func(session Session) (bool, error) {
		prev, err := session.Next(ctx)
		if err != nil {
			return false, err
		}
		var total float64
		for i := 1; i < c.samples; i++ {
			frame, err := session.Next(ctx)
			if err != nil {
				return false, err
			}
			total += c.score(prev, frame)
			prev = frame
		}
		return total >= c.threshold, nil
	})
}

// Model scores a single frame for liveness, higher is more alive.
type Model interface {
	Score(ctx context.Context, frame Frame) (float64, error)
}

// ModelChecker averages model scores over sampled frames against a threshold.
type ModelChecker struct {
	source    Source
	model     Model
	samples   int
	threshold float64
}

// NewModelChecker builds a model-based checker.
func NewModelChecker(source Source, model Model, samples int, threshold float64) *ModelChecker {
	if samples < 1 {
		samples = 1
	}
	return &ModelChecker{source: source, model: model, samples: samples, threshold: threshold}
}

func (c *ModelChecker) Run(ctx context.Context) (bool, error) {
	return withSession(ctx, c.source, func(session Session) (bool, error) {
		var total float64
		for i := 0; i < c.samples; i++ {
			frame, err := session.Next(ctx)
			if err != nil {
				return false, err
			}
			score, err := c.model.Score(ctx, frame)
			if err != nil {
				return false, err
			}
			total += score
		}
		return total/float64(c.samples) >= c.threshold, nil
	})
}
