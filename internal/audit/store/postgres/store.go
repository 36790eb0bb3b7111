// Package postgres provides the append-only PostgreSQL audit store. Records
// are keyed by timestamp + entity for efficient historical lookup and are
// never updated in place.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"docgate/internal/audit"
	txcontext "docgate/pkg/platform/tx"
)

// Schema creates the audit_records table.
const Schema = `
CREATE TABLE IF NOT EXISTS audit_records (
	id          UUID PRIMARY KEY,
	action      TEXT NOT NULL,
	occurred_at TIMESTAMPTZ NOT NULL,
	entity_id   TEXT NOT NULL DEFAULT '',
	payload     JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS audit_records_entity
	ON audit_records (entity_id, occurred_at);
`

// Store implements audit.Store on PostgreSQL.
type Store struct {
	db *sql.DB
}

// New creates a PostgreSQL-backed audit store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Migrate applies the schema. Idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("migrate audit schema: %w", err)
	}
	return nil
}

func (s *Store) execer(ctx context.Context) txcontext.Querier {
	return txcontext.Runner(ctx, s.db)
}

func (s *Store) Append(ctx context.Context, rec audit.Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal audit record: %w", err)
	}
	_, err = s.execer(ctx).ExecContext(ctx, `
		INSERT INTO audit_records (id, action, occurred_at, entity_id, payload)
		VALUES ($1, $2, $3, $4, $5)`,
		rec.ID, string(rec.Action), rec.Timestamp, rec.EntityID, payload)
	if err != nil {
		return fmt.Errorf("append audit record: %w", err)
	}
	return nil
}

func (s *Store) ListByEntity(ctx context.Context, entityID string) ([]audit.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload FROM audit_records
		WHERE entity_id = $1
		ORDER BY occurred_at`, entityID)
	if err != nil {
		return nil, fmt.Errorf("list audit records: %w", err)
	}
	defer rows.Close()
	return collect(rows)
}

func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload FROM audit_records
		ORDER BY occurred_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent audit records: %w", err)
	}
	defer rows.Close()
	return collect(rows)
}

func collect(rows *sql.Rows) ([]audit.Record, error) {
	var out []audit.Record
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		var rec audit.Record
		if err := json.Unmarshal(payload, &rec); err != nil {
			return nil, fmt.Errorf("decode audit record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
