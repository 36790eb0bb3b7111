package handler

import (
	"strings"

	"docgate/internal/ruleset/models"
	dErrors "docgate/pkg/domain-errors"
)

// CreateRuleSetRequest is the HTTP request body for POST /rulesets.
type CreateRuleSetRequest struct {
	BranchID   string                  `json:"branch_id"`
	EntityType string                  `json:"entity_type"`
	Rules      []models.DocumentRule   `json:"rules"`
	Governance models.GovernancePolicy `json:"governance"`

	// Parsed values (populated by Validate)
	parsedEntityType models.EntityType
}

// Validate validates and parses the request. Rule-level validation stays in
// the validator so every offending rule is reported in one response.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *CreateRuleSetRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	r.BranchID = strings.TrimSpace(r.BranchID)
	if r.BranchID == "" {
		return dErrors.New(dErrors.CodeValidation, "branch_id is required")
	}

	entityType, err := models.ParseEntityType(strings.TrimSpace(r.EntityType))
	if err != nil {
		return err
	}
	r.parsedEntityType = entityType
	return nil
}

// ParsedEntityType returns the validated entity type.
func (r *CreateRuleSetRequest) ParsedEntityType() models.EntityType {
	return r.parsedEntityType
}

// UpdateRuleSetRequest is the HTTP request body for PUT /rulesets/{id}. The
// rule list and governance policy replace the draft's wholesale.
type UpdateRuleSetRequest struct {
	Rules      []models.DocumentRule   `json:"rules"`
	Governance models.GovernancePolicy `json:"governance"`
}

// Validate implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *UpdateRuleSetRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	return nil
}
