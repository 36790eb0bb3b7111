package audit

import (
	"context"
	"log/slog"
)

// Sink ships audit records to an external system (e.g. Kafka for downstream
// SIEM and retention pipelines).
type Sink interface {
	Publish(ctx context.Context, rec Record) error
}

// Worker consumes records from a channel and publishes them to a sink.
// Delivery is fail-open: a sink error is logged and the worker moves on,
// since the record is already durably stored.
type Worker struct {
	sink   Sink
	inbox  <-chan Record
	logger *slog.Logger
}

// NewWorker constructs a sink worker.
func NewWorker(sink Sink, inbox <-chan Record, logger *slog.Logger) *Worker {
	return &Worker{sink: sink, inbox: inbox, logger: logger}
}

// Run consumes the inbox until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case rec := <-w.inbox:
			if err := w.sink.Publish(ctx, rec); err != nil {
				w.logger.ErrorContext(ctx, "audit sink publish failed",
					"action", rec.Action,
					"record_id", rec.ID,
					"error", err,
				)
			}
		}
	}
}
