package models

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	dErrors "docgate/pkg/domain-errors"
)

// RuleSetStatus is the lifecycle state of a ruleset.
type RuleSetStatus string

const (
	StatusDraft  RuleSetStatus = "draft"
	StatusActive RuleSetStatus = "active"
	StatusLocked RuleSetStatus = "locked"
)

// IsValid checks if the status is one of the supported enum values.
func (s RuleSetStatus) IsValid() bool {
	switch s {
	case StatusDraft, StatusActive, StatusLocked:
		return true
	}
	return false
}

// CanTransitionTo reports whether the lifecycle allows moving to the target
// status. Locked is terminal: nothing transitions out of it.
func (s RuleSetStatus) CanTransitionTo(target RuleSetStatus) bool {
	switch s {
	case StatusDraft:
		return target == StatusActive
	case StatusActive:
		return target == StatusLocked
	}
	return false
}

// LockedBySuperseded marks rulesets locked automatically when a newer
// version was activated, as opposed to an explicit lock by an actor.
const LockedBySuperseded = "system:superseded"

// RuleSet is the versioned aggregate of document rules and governance policy
// for one (branch, entity type) key.
//
// Invariants:
//   - At most one Draft and at most one Active ruleset exist per
//     (BranchID, EntityType) at any instant; the store enforces this.
//   - Version is monotonically increasing per key and assigned at activation.
//   - Rules and Governance are mutable only while Status is Draft.
//   - Locked is terminal; LockedAt, LockedBy, and SnapshotHash are set
//     exactly once, at lock time, and never change afterwards.
//
// Evaluators receive deep copies (see store implementations), so an in-flight
// evaluation is never affected by a concurrent activation. Rule order is
// insignificant to evaluation and preserved only for display.
type RuleSet struct {
	ID         uuid.UUID        `json:"id"`
	BranchID   string           `json:"branch_id"`
	EntityType EntityType       `json:"entity_type"`
	Version    int              `json:"version"`
	Status     RuleSetStatus    `json:"status"`
	Rules      []DocumentRule   `json:"rules"`
	Governance GovernancePolicy `json:"governance"`

	// Validated records whether the current rule list has passed validation
	// since the last edit. Activation requires it.
	Validated bool `json:"validated"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	LockedAt     *time.Time `json:"locked_at,omitempty"`
	LockedBy     string     `json:"locked_by,omitempty"`
	SnapshotHash string     `json:"snapshot_hash,omitempty"`
}

// NewDraft creates a fresh draft for the given key. The draft starts empty
// and unvalidated: it must be updated (and thereby validated) before it can
// be activated.
func NewDraft(branchID string, entityType EntityType, now time.Time) (*RuleSet, error) {
	if branchID == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "branch id cannot be empty")
	}
	if !entityType.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "invalid entity type")
	}
	return &RuleSet{
		ID:         uuid.New(),
		BranchID:   branchID,
		EntityType: entityType,
		Status:     StatusDraft,
		Rules:      []DocumentRule{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// CanUpdate checks that the ruleset accepts rule/governance replacement.
// Only drafts are mutable; anything else is immutable state.
func (rs *RuleSet) CanUpdate() error {
	if rs.Status != StatusDraft {
		return dErrors.Newf(dErrors.CodeConflict, "ruleset is %s, not a draft: rules are immutable", rs.Status)
	}
	return nil
}

// ApplyUpdate replaces the full rule list and governance policy. Validation
// is whole-list and happens before this is called; the Validated flag is set
// by the caller once the candidate list passed.
func (rs *RuleSet) ApplyUpdate(rules []DocumentRule, governance GovernancePolicy, now time.Time) {
	rs.Rules = rules
	rs.Governance = governance
	rs.Validated = false
	rs.UpdatedAt = now
}

// MarkValidated records that the current rule list passed validation.
func (rs *RuleSet) MarkValidated() {
	rs.Validated = true
}

// CanActivate checks that the ruleset is a draft that has passed validation
// since its last edit.
func (rs *RuleSet) CanActivate() error {
	if rs.Status != StatusDraft {
		return dErrors.Newf(dErrors.CodeConflict, "ruleset is %s, not a draft: cannot activate", rs.Status)
	}
	if !rs.Validated {
		return dErrors.New(dErrors.CodeConflict, "draft has not passed validation since its last edit")
	}
	return nil
}

// ApplyActivation publishes the draft as the active version. The store
// assigns the version (previous active version + 1, or 1).
func (rs *RuleSet) ApplyActivation(version int, now time.Time) {
	rs.Version = version
	rs.Status = StatusActive
	rs.UpdatedAt = now
}

// CanLock checks that the ruleset is currently active. Locking a draft or an
// already locked ruleset is invalid state.
func (rs *RuleSet) CanLock() error {
	if !rs.Status.CanTransitionTo(StatusLocked) {
		return dErrors.Newf(dErrors.CodeConflict, "ruleset is %s, not active: cannot lock", rs.Status)
	}
	return nil
}

// ApplyLock transitions the ruleset to its terminal Locked state and stamps
// the snapshot hash over the full rule and governance payload.
func (rs *RuleSet) ApplyLock(actorID string, now time.Time) {
	lockedAt := now
	rs.Status = StatusLocked
	rs.LockedAt = &lockedAt
	rs.LockedBy = actorID
	rs.SnapshotHash = rs.ComputeSnapshotHash()
	rs.UpdatedAt = now
}

// snapshotPayload is the canonical hashed form of a ruleset. Rules are
// sorted by uniqueness key so the hash is independent of display order.
type snapshotPayload struct {
	BranchID   string           `json:"branch_id"`
	EntityType EntityType       `json:"entity_type"`
	Version    int              `json:"version"`
	Rules      []DocumentRule   `json:"rules"`
	Governance GovernancePolicy `json:"governance"`
}

// ComputeSnapshotHash returns the SHA-256 hex digest of the canonical
// rule+governance payload.
func (rs *RuleSet) ComputeSnapshotHash() string {
	rules := append([]DocumentRule(nil), rs.Rules...)
	sort.Slice(rules, func(i, j int) bool {
		a, b := rules[i].Key(), rules[j].Key()
		if a.DocumentCategory != b.DocumentCategory {
			return a.DocumentCategory < b.DocumentCategory
		}
		if a.Stage != b.Stage {
			return a.Stage < b.Stage
		}
		return a.EntitySubtype < b.EntitySubtype
	})

	payload, err := json.Marshal(snapshotPayload{
		BranchID:   rs.BranchID,
		EntityType: rs.EntityType,
		Version:    rs.Version,
		Rules:      rules,
		Governance: rs.Governance,
	})
	if err != nil {
		// Marshalling a plain struct of scalars and slices cannot fail.
		panic(fmt.Sprintf("snapshot hash: %v", err))
	}

	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// ConfigurationHazards reports non-fatal configuration problems: setups that
// are legal but leave no relief path. The only current hazard is a ruleset
// with hard blocks, no override roles, and no provisional admission.
func (rs *RuleSet) ConfigurationHazards() []string {
	var hazards []string

	hasHardBlock := false
	for _, rule := range rs.Rules {
		if rule.Enforcement == EnforcementHardBlock {
			hasHardBlock = true
			break
		}
	}
	if hasHardBlock && len(rs.Governance.OverrideRoles) == 0 && !rs.Governance.ProvisionalAdmissionAllowed {
		hazards = append(hazards,
			"hard-block rules exist with no override roles and provisional admission disabled: blocked entities will have no relief path")
	}

	return hazards
}

// Clone returns a deep copy. Stores hand out clones so published rulesets
// behave as immutable snapshots under concurrent evaluation.
func (rs *RuleSet) Clone() *RuleSet {
	clone := *rs
	clone.Rules = append([]DocumentRule(nil), rs.Rules...)
	clone.Governance.OverrideRoles = append([]string(nil), rs.Governance.OverrideRoles...)
	if rs.LockedAt != nil {
		lockedAt := *rs.LockedAt
		clone.LockedAt = &lockedAt
	}
	return &clone
}
