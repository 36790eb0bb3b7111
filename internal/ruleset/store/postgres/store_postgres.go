// Package postgres provides the PostgreSQL-backed ruleset store.
//
// Draft and active rulesets are mutable rows; locked rulesets are immutable
// records. Partial unique indexes enforce "at most one draft, at most one
// active" per (branch, entity type), so a racing CreateDraft or Activate
// loses at the database rather than silently clobbering state.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"docgate/internal/ruleset/models"
	"docgate/pkg/platform/sentinel"
	txcontext "docgate/pkg/platform/tx"
)

// Schema creates the rulesets table and its invariant-enforcing indexes.
const Schema = `
CREATE TABLE IF NOT EXISTS rulesets (
	id            UUID PRIMARY KEY,
	branch_id     TEXT NOT NULL,
	entity_type   TEXT NOT NULL,
	version       INT NOT NULL DEFAULT 0,
	status        TEXT NOT NULL,
	payload       JSONB NOT NULL,
	validated     BOOLEAN NOT NULL DEFAULT FALSE,
	created_at    TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL,
	locked_at     TIMESTAMPTZ,
	locked_by     TEXT NOT NULL DEFAULT '',
	snapshot_hash TEXT NOT NULL DEFAULT ''
);
CREATE UNIQUE INDEX IF NOT EXISTS rulesets_one_draft
	ON rulesets (branch_id, entity_type) WHERE status = 'draft';
CREATE UNIQUE INDEX IF NOT EXISTS rulesets_one_active
	ON rulesets (branch_id, entity_type) WHERE status = 'active';
CREATE UNIQUE INDEX IF NOT EXISTS rulesets_by_version
	ON rulesets (branch_id, entity_type, version) WHERE version > 0;
`

// Store implements store.Store on PostgreSQL.
type Store struct {
	db *sql.DB
}

// New constructs a PostgreSQL-backed ruleset store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Migrate applies the schema. Idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("migrate rulesets schema: %w", err)
	}
	return nil
}

func (s *Store) querier(ctx context.Context) txcontext.Querier {
	return txcontext.Runner(ctx, s.db)
}

// payload is the JSONB body holding the parts of a ruleset with internal
// structure. Scalar columns stay relational for indexing.
type payload struct {
	Rules      []models.DocumentRule   `json:"rules"`
	Governance models.GovernancePolicy `json:"governance"`
}

const selectColumns = `id, branch_id, entity_type, version, status, payload, validated,
	created_at, updated_at, locked_at, locked_by, snapshot_hash`

func scanRuleSet(row *sql.Row) (*models.RuleSet, error) {
	var (
		rs          models.RuleSet
		entityType  string
		status      string
		payloadJSON []byte
		lockedAt    sql.NullTime
	)
	err := row.Scan(&rs.ID, &rs.BranchID, &entityType, &rs.Version, &status, &payloadJSON,
		&rs.Validated, &rs.CreatedAt, &rs.UpdatedAt, &lockedAt, &rs.LockedBy, &rs.SnapshotHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan ruleset: %w", err)
	}

	var p payload
	if err := json.Unmarshal(payloadJSON, &p); err != nil {
		return nil, fmt.Errorf("decode ruleset payload: %w", err)
	}
	rs.EntityType = models.EntityType(entityType)
	rs.Status = models.RuleSetStatus(status)
	rs.Rules = p.Rules
	rs.Governance = p.Governance
	if lockedAt.Valid {
		t := lockedAt.Time
		rs.LockedAt = &t
	}
	return &rs, nil
}

func encodePayload(rs *models.RuleSet) ([]byte, error) {
	body, err := json.Marshal(payload{Rules: rs.Rules, Governance: rs.Governance})
	if err != nil {
		return nil, fmt.Errorf("encode ruleset payload: %w", err)
	}
	return body, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (s *Store) CreateDraft(ctx context.Context, rs *models.RuleSet) error {
	body, err := encodePayload(rs)
	if err != nil {
		return err
	}
	_, err = s.querier(ctx).ExecContext(ctx, `
		INSERT INTO rulesets (id, branch_id, entity_type, version, status, payload, validated, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rs.ID, rs.BranchID, rs.EntityType.String(), rs.Version, string(rs.Status), body,
		rs.Validated, rs.CreatedAt, rs.UpdatedAt)
	if isUniqueViolation(err) {
		return sentinel.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("create draft: %w", err)
	}
	return nil
}

func (s *Store) UpdateDraft(ctx context.Context, rs *models.RuleSet) error {
	body, err := encodePayload(rs)
	if err != nil {
		return err
	}

	// Guard the status in the WHERE clause: a draft activated between the
	// caller's read and this write must not be overwritten.
	res, err := s.querier(ctx).ExecContext(ctx, `
		UPDATE rulesets
		SET payload = $2, validated = $3, updated_at = $4
		WHERE id = $1 AND status = 'draft'`,
		rs.ID, body, rs.Validated, rs.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update draft: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update draft: %w", err)
	}
	if affected == 0 {
		// Distinguish a missing row from a non-draft row.
		stored, findErr := s.FindByID(ctx, rs.ID)
		if findErr != nil {
			return findErr
		}
		return stored.CanUpdate()
	}
	return nil
}

func (s *Store) FindByID(ctx context.Context, id uuid.UUID) (*models.RuleSet, error) {
	row := s.querier(ctx).QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM rulesets WHERE id = $1`, id)
	return scanRuleSet(row)
}

func (s *Store) FindActive(ctx context.Context, branchID string, entityType models.EntityType) (*models.RuleSet, error) {
	row := s.querier(ctx).QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM rulesets
		 WHERE branch_id = $1 AND entity_type = $2 AND status = 'active'`,
		branchID, entityType.String())
	return scanRuleSet(row)
}

func (s *Store) FindLatestLocked(ctx context.Context, branchID string, entityType models.EntityType) (*models.RuleSet, error) {
	row := s.querier(ctx).QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM rulesets
		 WHERE branch_id = $1 AND entity_type = $2 AND status = 'locked'
		 ORDER BY version DESC LIMIT 1`,
		branchID, entityType.String())
	return scanRuleSet(row)
}

func (s *Store) FindByVersion(ctx context.Context, branchID string, entityType models.EntityType, version int) (*models.RuleSet, error) {
	row := s.querier(ctx).QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM rulesets
		 WHERE branch_id = $1 AND entity_type = $2 AND version = $3`,
		branchID, entityType.String(), version)
	return scanRuleSet(row)
}

func (s *Store) Activate(ctx context.Context, draftID uuid.UUID, now time.Time) (*models.RuleSet, *models.RuleSet, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin activate: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	txCtx := txcontext.WithTx(ctx, tx)

	draft, err := s.findForUpdate(txCtx, tx, draftID)
	if err != nil {
		return nil, nil, err
	}
	if err := draft.CanActivate(); err != nil {
		return nil, nil, err
	}

	var superseded *models.RuleSet
	version := 1
	row := tx.QueryRowContext(txCtx, `
		SELECT `+selectColumns+` FROM rulesets
		WHERE branch_id = $1 AND entity_type = $2 AND status = 'active'
		FOR UPDATE`,
		draft.BranchID, draft.EntityType.String())
	current, err := scanRuleSet(row)
	switch {
	case err == nil:
		superseded = current
		version = current.Version + 1
		superseded.ApplyLock(models.LockedBySuperseded, now)
		if err := s.writeLockState(txCtx, tx, superseded); err != nil {
			return nil, nil, err
		}
	case errors.Is(err, sentinel.ErrNotFound):
		// First activation for this key.
	default:
		return nil, nil, err
	}

	draft.ApplyActivation(version, now)
	_, err = tx.ExecContext(txCtx, `
		UPDATE rulesets SET status = 'active', version = $2, updated_at = $3
		WHERE id = $1`,
		draft.ID, draft.Version, draft.UpdatedAt)
	if isUniqueViolation(err) {
		return nil, nil, sentinel.ErrConflict
	}
	if err != nil {
		return nil, nil, fmt.Errorf("publish active ruleset: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit activate: %w", err)
	}
	return draft, superseded, nil
}

func (s *Store) Lock(ctx context.Context, id uuid.UUID, actorID string, now time.Time) (*models.RuleSet, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin lock: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	txCtx := txcontext.WithTx(ctx, tx)

	rs, err := s.findForUpdate(txCtx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := rs.CanLock(); err != nil {
		return nil, err
	}

	rs.ApplyLock(actorID, now)
	if err := s.writeLockState(txCtx, tx, rs); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit lock: %w", err)
	}
	return rs, nil
}

func (s *Store) findForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*models.RuleSet, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM rulesets WHERE id = $1 FOR UPDATE`, id)
	return scanRuleSet(row)
}

func (s *Store) writeLockState(ctx context.Context, tx *sql.Tx, rs *models.RuleSet) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE rulesets
		SET status = 'locked', locked_at = $2, locked_by = $3, snapshot_hash = $4, updated_at = $5
		WHERE id = $1`,
		rs.ID, rs.LockedAt, rs.LockedBy, rs.SnapshotHash, rs.UpdatedAt)
	if err != nil {
		return fmt.Errorf("write lock state: %w", err)
	}
	return nil
}
