package audit

import (
	"context"
	"log/slog"
	"time"

	"secureid/internal/domain"
)

// Sink receives each record after it is stored, e.g. a message broker.
type Sink interface {
	Publish(ctx context.Context, record Record) error
}

// Worker consumes ledger events from the publisher's inbox, persists them and
// fans them out to optional sinks. Sink failures are logged and skipped; the
// stored trail is the source of truth.
type Worker struct {
	store  Store
	inbox  <-chan domain.Event
	sinks  []Sink
	logger *slog.Logger
	clock  func() time.Time
}

// NewWorker builds a worker draining inbox into store and sinks.
func NewWorker(store Store, inbox <-chan domain.Event, logger *slog.Logger, sinks ...Sink) *Worker {
	return &Worker{
		store:  store,
		inbox:  inbox,
		sinks:  sinks,
		logger: logger,
		clock:  time.Now,
	}
}

// Run processes events until the context ends. A store failure stops the
// worker; the caller decides whether that is fatal.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			record := fromEvent(event, w.clock())
			if err := w.store.Append(ctx, record); err != nil {
				return err
			}
			for _, sink := range w.sinks {
				if err := sink.Publish(ctx, record); err != nil {
					w.logger.WarnContext(ctx, "audit sink publish failed",
						"event_kind", string(record.Kind),
						"error", err,
					)
				}
			}
		}
	}
}
