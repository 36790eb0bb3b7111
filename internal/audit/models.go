package audit

import (
	"time"

	"github.com/google/uuid"
)

// Action classifies audit records. Every bypass and every lifecycle lock
// event ends up here; records are append-only and never mutated or deleted.
type Action string

const (
	// ActionOverrideApplied records an authorized bypass of a hard-block
	// verdict during evaluation.
	ActionOverrideApplied Action = "override_applied"

	// ActionRuleSetActivated records a draft being published as the active
	// version for its key.
	ActionRuleSetActivated Action = "ruleset_activated"

	// ActionRuleSetSuperseded records the previous active version being
	// locked automatically because a newer version was activated.
	ActionRuleSetSuperseded Action = "ruleset_superseded"

	// ActionRuleSetLocked records an explicit, terminal lock by an actor.
	ActionRuleSetLocked Action = "ruleset_locked"
)

// Record is one append-only audit entry. Keep it transport-agnostic so
// stores and sinks can fan out.
type Record struct {
	ID        uuid.UUID `json:"id"`
	Action    Action    `json:"action"`
	Timestamp time.Time `json:"timestamp"`

	ActorID    string   `json:"actor_id"`
	ActorRoles []string `json:"actor_roles,omitempty"`

	// EntityID is set for override records; empty for lifecycle events.
	EntityID string `json:"entity_id,omitempty"`
	// RuleID identifies the overridden rule; zero for lifecycle events.
	RuleID uuid.UUID `json:"rule_id,omitempty"`

	RuleSetID      uuid.UUID `json:"ruleset_id"`
	RuleSetVersion int       `json:"ruleset_version,omitempty"`
	SnapshotHash   string    `json:"snapshot_hash,omitempty"`

	OriginalOutcome  string `json:"original_outcome,omitempty"`
	ResultingOutcome string `json:"resulting_outcome,omitempty"`
	Reason           string `json:"reason,omitempty"`
}
