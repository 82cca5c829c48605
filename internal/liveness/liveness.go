// Package liveness provides interchangeable liveness-check strategies. The
// rest of the system consumes only the boolean outcome and never depends on
// which strategy produced it.
package liveness

import (
	"context"

	dErrors "secureid/pkg/domain-errors"
)

// Frame is one captured frame, opaque to this package.
type Frame []byte

// Source opens capture sessions. Implementations wrap the camera plumbing.
type Source interface {
	Open(ctx context.Context) (Session, error)
}

// Session delivers frames until closed. Close must be idempotent.
type Session interface {
	Next(ctx context.Context) (Frame, error)
	Close() error
}

// Checker runs one liveness check. A false result is a normal negative
// outcome; an error means the check itself could not run.
type Checker interface {
	Run(ctx context.Context) (bool, error)
}

// Func adapts a plain function to Checker.
type Func func(ctx context.Context) (bool, error)

func (f Func) Run(ctx context.Context) (bool, error) {
	return f(ctx)
}

// ErrNoFrames is returned when a session yields nothing to judge.
var ErrNoFrames = dErrors.New(dErrors.CodeUnavailable, "capture session produced no frames")

// withSession opens a session, runs fn, and guarantees release on every exit
// path: success, fn error, and context cancellation alike.
func withSession(ctx context.Context, source Source, fn func(Session) (bool, error)) (result bool, err error) {
	session, err := source.Open(ctx)
	if err != nil {
		return false, dErrors.Wrap(dErrors.CodeUnavailable, "open capture session", err)
	}
	defer func() {
		closeErr := session.Close()
		if err == nil && closeErr != nil {
			err = dErrors.Wrap(dErrors.CodeInternal, "close capture session", closeErr)
		}
	}()

	if err := ctx.Err(); err != nil {
		return false, err
	}
	return fn(session)
}
