package models

import (
	"github.com/google/uuid"

	dErrors "docgate/pkg/domain-errors"
)

// EntityType identifies which population a ruleset governs.
type EntityType string

const (
	EntityTypeStudent  EntityType = "student"
	EntityTypeEmployee EntityType = "employee"
)

// ParseEntityType creates an EntityType from a string, validating it.
func ParseEntityType(s string) (EntityType, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "entity type cannot be empty")
	}
	t := EntityType(s)
	if !t.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid entity type: must be 'student' or 'employee'")
	}
	return t, nil
}

// IsValid checks if the entity type is one of the supported enum values.
func (t EntityType) IsValid() bool {
	return t == EntityTypeStudent || t == EntityTypeEmployee
}

// String returns the string representation.
func (t EntityType) String() string {
	return string(t)
}

// Stage is a lifecycle checkpoint at which document compliance is checked.
type Stage string

const (
	StageAdmission     Stage = "admission"
	StagePostAdmission Stage = "post_admission"
	StageJoining       Stage = "joining"
	StageExam          Stage = "exam"
	StageInterview     Stage = "interview"
)

// ParseStage creates a Stage from a string, validating it.
func ParseStage(s string) (Stage, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "stage cannot be empty")
	}
	st := Stage(s)
	if !st.IsValid() {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "invalid stage: %q", s)
	}
	return st, nil
}

// IsValid checks if the stage is one of the supported enum values.
func (s Stage) IsValid() bool {
	switch s {
	case StageAdmission, StagePostAdmission, StageJoining, StageExam, StageInterview:
		return true
	}
	return false
}

// String returns the string representation.
func (s Stage) String() string {
	return string(s)
}

// Enforcement defines how strictly a missing or unverified document blocks
// progress once its grace period has elapsed.
type Enforcement string

const (
	EnforcementHardBlock   Enforcement = "hard_block"
	EnforcementSoftWarning Enforcement = "soft_warning"
	EnforcementInfoOnly    Enforcement = "info_only"
)

// ParseEnforcement creates an Enforcement from a string, validating it.
func ParseEnforcement(s string) (Enforcement, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "enforcement cannot be empty")
	}
	e := Enforcement(s)
	if !e.IsValid() {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "invalid enforcement: %q", s)
	}
	return e, nil
}

// IsValid checks if the enforcement level is one of the supported enum values.
func (e Enforcement) IsValid() bool {
	switch e {
	case EnforcementHardBlock, EnforcementSoftWarning, EnforcementInfoOnly:
		return true
	}
	return false
}

// String returns the string representation.
func (e Enforcement) String() string {
	return string(e)
}

// Restrictiveness orders enforcement levels for the fail-closed tie-break:
// HardBlock > SoftWarning > InfoOnly.
func (e Enforcement) Restrictiveness() int {
	switch e {
	case EnforcementHardBlock:
		return 3
	case EnforcementSoftWarning:
		return 2
	case EnforcementInfoOnly:
		return 1
	}
	return 0
}

// SubtypeAll is the wildcard entity subtype: the rule applies to every
// subtype of the ruleset's entity type.
const SubtypeAll = "all"

// DocumentRule is one requirement definition within a ruleset.
type DocumentRule struct {
	ID               uuid.UUID   `json:"id"`
	DocumentCategory string      `json:"document_category"`
	EntitySubtype    string      `json:"entity_subtype"`
	Stage            Stage       `json:"stage"`
	Mandatory        bool        `json:"mandatory"`
	Enforcement      Enforcement `json:"enforcement"`
	GracePeriodDays  int         `json:"grace_period_days"`
	VerifierRole     string      `json:"verifier_role"`
}

// RuleKey is the uniqueness key for rules within a ruleset. No two rules in
// one ruleset may share a key.
type RuleKey struct {
	DocumentCategory string
	Stage            Stage
	EntitySubtype    string
}

// Key returns the rule's uniqueness key.
func (r DocumentRule) Key() RuleKey {
	return RuleKey{
		DocumentCategory: r.DocumentCategory,
		Stage:            r.Stage,
		EntitySubtype:    r.EntitySubtype,
	}
}

// AppliesTo reports whether the rule gates the given stage for the given
// entity subtype. A rule with the wildcard subtype applies to every subtype.
func (r DocumentRule) AppliesTo(stage Stage, entitySubtype string) bool {
	if r.Stage != stage {
		return false
	}
	return r.EntitySubtype == SubtypeAll || r.EntitySubtype == entitySubtype
}
