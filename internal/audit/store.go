package audit

import "context"

// Store persists audit records. Implementations must be append-only: there
// is no update or delete, and concurrent appends from many evaluators are
// expected. Ordering between unrelated records is not guaranteed beyond each
// record's own timestamp.
type Store interface {
	Append(ctx context.Context, rec Record) error
	ListByEntity(ctx context.Context, entityID string) ([]Record, error)
	ListRecent(ctx context.Context, limit int) ([]Record, error)
}
