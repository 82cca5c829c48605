package audit

import (
	"context"
	"log/slog"

	"secureid/internal/domain"
)

// ChannelPublisher implements the ledger's event sink by handing events to
// the worker's inbox. Emit never blocks a ledger mutation: when the inbox is
// full the event is dropped and logged, on the view that a slow audit trail
// must not stall identity operations.
type ChannelPublisher struct {
	inbox  chan domain.Event
	logger *slog.Logger
}

// NewChannelPublisher creates a publisher with the given inbox capacity.
func NewChannelPublisher(capacity int, logger *slog.Logger) *ChannelPublisher {
	if capacity < 1 {
		capacity = 64
	}
	return &ChannelPublisher{
		inbox:  make(chan domain.Event, capacity),
		logger: logger,
	}
}

// Inbox exposes the receive side for the worker.
func (p *ChannelPublisher) Inbox() <-chan domain.Event {
	return p.inbox
}

// Emit enqueues the event for the audit worker.
func (p *ChannelPublisher) Emit(ctx context.Context, event domain.Event) error {
	select {
	case p.inbox <- event:
		return nil
	default:
		p.logger.WarnContext(ctx, "audit inbox full, dropping event",
			"event_kind", string(event.Kind),
			"holder", event.Holder.String(),
		)
		return nil
	}
}
