package handler

import (
	"strings"

	"github.com/google/uuid"

	"docgate/internal/evaluation"
	"docgate/internal/ruleset/models"
	dErrors "docgate/pkg/domain-errors"
)

// EvaluateRequest is the HTTP request body for POST /evaluate.
type EvaluateRequest struct {
	BranchID   string                    `json:"branch_id"`
	EntityType string                    `json:"entity_type"`
	RuleSetID  string                    `json:"ruleset_id,omitempty"`
	Stage      string                    `json:"stage"`
	Entity     evaluation.EntitySnapshot `json:"entity"`
	Override   *OverrideRequest          `json:"override,omitempty"`

	// Parsed values (populated by Validate)
	parsedStage      models.Stage
	parsedEntityType models.EntityType
	parsedRuleSetID  *uuid.UUID
}

// OverrideRequest asserts a bypass of hard-block outcomes. The actor
// identity and roles come from the authenticated request, never the body.
type OverrideRequest struct {
	Reason string `json:"reason"`
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *EvaluateRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	stage, err := models.ParseStage(strings.TrimSpace(r.Stage))
	if err != nil {
		return err
	}
	r.parsedStage = stage

	if r.Entity.EntityID = strings.TrimSpace(r.Entity.EntityID); r.Entity.EntityID == "" {
		return dErrors.New(dErrors.CodeValidation, "entity.entity_id is required")
	}
	if r.Entity.StageTriggerDate.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "entity.stage_trigger_date is required")
	}
	for category, doc := range r.Entity.Documents {
		if !doc.Status.IsValid() {
			return dErrors.Newf(dErrors.CodeValidation, "invalid document status %q for category %q", doc.Status, category)
		}
	}

	// Explicit version pin takes precedence over the (branch, entity type) key.
	if raw := strings.TrimSpace(r.RuleSetID); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return dErrors.New(dErrors.CodeValidation, "ruleset_id must be a UUID")
		}
		r.parsedRuleSetID = &id
	} else {
		r.BranchID = strings.TrimSpace(r.BranchID)
		if r.BranchID == "" {
			return dErrors.New(dErrors.CodeValidation, "branch_id is required when ruleset_id is not set")
		}
		entityType, err := models.ParseEntityType(strings.TrimSpace(r.EntityType))
		if err != nil {
			return err
		}
		r.parsedEntityType = entityType
	}

	if r.Override != nil {
		r.Override.Reason = strings.TrimSpace(r.Override.Reason)
		if r.Override.Reason == "" {
			return dErrors.New(dErrors.CodeValidation, "override.reason is required")
		}
	}
	return nil
}

// ParsedStage returns the validated stage.
func (r *EvaluateRequest) ParsedStage() models.Stage {
	return r.parsedStage
}

// ParsedEntityType returns the validated entity type.
func (r *EvaluateRequest) ParsedEntityType() models.EntityType {
	return r.parsedEntityType
}

// ParsedRuleSetID returns the pinned ruleset id, or nil.
func (r *EvaluateRequest) ParsedRuleSetID() *uuid.UUID {
	return r.parsedRuleSetID
}

// ImpactPreviewRequest is the HTTP request body for
// POST /rulesets/{id}/impact-preview. The population sample is supplied by
// the caller; entity records live outside this service.
type ImpactPreviewRequest struct {
	Stage      string                      `json:"stage"`
	Population []evaluation.EntitySnapshot `json:"population"`

	parsedStage models.Stage
}

// Validate implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *ImpactPreviewRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	stage, err := models.ParseStage(strings.TrimSpace(r.Stage))
	if err != nil {
		return err
	}
	r.parsedStage = stage

	for i, entity := range r.Population {
		if strings.TrimSpace(entity.EntityID) == "" {
			return dErrors.Newf(dErrors.CodeValidation, "population[%d].entity_id is required", i)
		}
	}
	return nil
}

// ParsedStage returns the validated stage.
func (r *ImpactPreviewRequest) ParsedStage() models.Stage {
	return r.parsedStage
}
