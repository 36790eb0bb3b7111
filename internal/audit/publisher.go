package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Publisher captures audit records. Persistence is synchronous and
// fail-closed: if the store cannot append, the caller's operation must fail,
// because a bypass without a trail is worse than no bypass. Forwarding to an
// external sink (Kafka) is best-effort and never blocks the caller.
type Publisher struct {
	store   Store
	forward chan<- Record
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithForward attaches a channel feeding an external sink worker. Sends are
// non-blocking; a full channel drops the forward, never the stored record.
func WithForward(forward chan<- Record) Option {
	return func(p *Publisher) {
		p.forward = forward
	}
}

// NewPublisher creates a publisher over the given store.
func NewPublisher(store Store, opts ...Option) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit appends a record, assigning an ID and timestamp when unset.
func (p *Publisher) Emit(ctx context.Context, rec Record) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	if err := p.store.Append(ctx, rec); err != nil {
		return err
	}

	if p.forward != nil {
		select {
		case p.forward <- rec:
		default:
		}
	}
	return nil
}

// ListByEntity returns the audit trail for one entity.
func (p *Publisher) ListByEntity(ctx context.Context, entityID string) ([]Record, error) {
	return p.store.ListByEntity(ctx, entityID)
}
