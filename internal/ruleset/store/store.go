// Package store defines the persistence contract for rulesets.
//
// Implementations enforce the structural invariants at the storage layer:
// at most one draft and at most one active ruleset per (branch, entity type),
// and atomic activation (supersede the old active, publish the new one) so
// no reader ever observes a half-updated ruleset. Reads return deep copies;
// a ruleset handed to an evaluator is a stable snapshot.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"docgate/internal/ruleset/models"
)

// Store persists rulesets. Infrastructure failures surface as sentinel
// errors (pkg/platform/sentinel); lifecycle violations surface as the domain
// errors produced by the models' Can* checks, evaluated inside the store's
// critical section so racing callers get a truthful answer.
type Store interface {
	// CreateDraft persists a new draft. Fails with sentinel.ErrConflict if a
	// draft already exists for the ruleset's (branch, entity type) key.
	CreateDraft(ctx context.Context, rs *models.RuleSet) error

	// UpdateDraft replaces the stored rules and governance of a draft.
	// Fails with sentinel.ErrNotFound if the id is unknown and with the
	// domain error from CanUpdate if the stored ruleset is no longer a draft.
	UpdateDraft(ctx context.Context, rs *models.RuleSet) error

	// FindByID returns a copy of the ruleset with the given id.
	FindByID(ctx context.Context, id uuid.UUID) (*models.RuleSet, error)

	// FindActive returns a copy of the active ruleset for the key.
	FindActive(ctx context.Context, branchID string, entityType models.EntityType) (*models.RuleSet, error)

	// FindLatestLocked returns the locked ruleset with the highest version
	// for the key. Used when no active version exists.
	FindLatestLocked(ctx context.Context, branchID string, entityType models.EntityType) (*models.RuleSet, error)

	// FindByVersion returns the ruleset (active or locked) with the given
	// version for the key, for retrospective audits.
	FindByVersion(ctx context.Context, branchID string, entityType models.EntityType, version int) (*models.RuleSet, error)

	// Activate atomically publishes the draft: the current active ruleset
	// for the same key (if any) becomes locked with LockedBy set to
	// models.LockedBySuperseded, and the draft becomes active with the next
	// version number. Returns the new active ruleset and the superseded one
	// (nil if none existed).
	Activate(ctx context.Context, draftID uuid.UUID, now time.Time) (*models.RuleSet, *models.RuleSet, error)

	// Lock transitions an active ruleset to its terminal locked state.
	Lock(ctx context.Context, id uuid.UUID, actorID string, now time.Time) (*models.RuleSet, error)
}
