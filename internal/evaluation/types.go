package evaluation

import (
	"time"

	"github.com/google/uuid"

	"docgate/internal/ruleset/models"
	dErrors "docgate/pkg/domain-errors"
)

// DocumentStatus is the submission state of one document category for an
// entity, as reported by the external entity-record system.
type DocumentStatus string

const (
	StatusMissing             DocumentStatus = "missing"
	StatusPendingVerification DocumentStatus = "pending_verification"
	StatusVerified            DocumentStatus = "verified"
)

// ParseDocumentStatus creates a DocumentStatus from a string, validating it.
func ParseDocumentStatus(s string) (DocumentStatus, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "document status cannot be empty")
	}
	st := DocumentStatus(s)
	if !st.IsValid() {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "invalid document status: %q", s)
	}
	return st, nil
}

// IsValid checks if the status is one of the supported enum values.
func (s DocumentStatus) IsValid() bool {
	switch s {
	case StatusMissing, StatusPendingVerification, StatusVerified:
		return true
	}
	return false
}

// DocumentRecord is the per-category submission state.
type DocumentRecord struct {
	Status      DocumentStatus `json:"status"`
	SubmittedAt *time.Time     `json:"submitted_at,omitempty"`
}

// EntitySnapshot is the read-only evaluation input describing one entity.
// It is owned by the external entity-record system; the engine never writes
// to it.
type EntitySnapshot struct {
	EntityID             string                    `json:"entity_id"`
	EntitySubtype        string                    `json:"entity_subtype"`
	StageTriggerDate     time.Time                 `json:"stage_trigger_date"`
	IsProvisional        bool                      `json:"is_provisional"`
	ProvisionalStartDate time.Time                 `json:"provisional_start_date,omitzero"`
	Documents            map[string]DocumentRecord `json:"documents"`
}

// Document returns the record for a category, defaulting to Missing when the
// entity has never submitted anything in that category.
func (e EntitySnapshot) Document(category string) DocumentRecord {
	if rec, ok := e.Documents[category]; ok {
		return rec
	}
	return DocumentRecord{Status: StatusMissing}
}

// Outcome is an enforcement verdict, per document or aggregate.
type Outcome string

const (
	OutcomeAllow Outcome = "allow"
	OutcomeWarn  Outcome = "warn"
	OutcomeBlock Outcome = "block"
)

// Restrictiveness orders outcomes: Block > Warn > Allow.
func (o Outcome) Restrictiveness() int {
	switch o {
	case OutcomeBlock:
		return 3
	case OutcomeWarn:
		return 2
	case OutcomeAllow:
		return 1
	}
	return 0
}

// MostRestrictive returns the stricter of two outcomes.
func MostRestrictive(a, b Outcome) Outcome {
	if b.Restrictiveness() > a.Restrictiveness() {
		return b
	}
	return a
}

// Override is a caller-asserted bypass request: an actor identity, its role
// set, and a free-text reason. It applies only to hard-block outcomes.
type Override struct {
	ActorID    string
	ActorRoles []string
	Reason     string
}

// DocumentVerdict is the per-document breakdown of a verdict.
type DocumentVerdict struct {
	DocumentCategory string             `json:"document_category"`
	RuleID           uuid.UUID          `json:"rule_id"`
	Outcome          Outcome            `json:"outcome"`
	Enforcement      models.Enforcement `json:"enforcement"`
	// DaysRemainingInGrace is set while the document is inside its grace
	// window, for every enforcement level, so callers can render countdowns.
	DaysRemainingInGrace *int `json:"days_remaining_in_grace,omitempty"`
	Overridden           bool `json:"overridden,omitempty"`
}

// Verdict is the evaluation output. It is never persisted by the engine;
// callers may log it.
type Verdict struct {
	Outcome        Outcome           `json:"outcome"`
	Stage          models.Stage      `json:"stage"`
	RuleSetID      uuid.UUID         `json:"ruleset_id"`
	RuleSetVersion int               `json:"ruleset_version"`
	EvaluatedAt    time.Time         `json:"evaluated_at"`
	Documents      []DocumentVerdict `json:"documents"`
}
