package handler

import (
	"docgate/internal/ruleset/models"
)

// RuleSetResponse is the HTTP representation of a ruleset. Hazards are
// advisory and only populated on authoring responses.
type RuleSetResponse struct {
	*models.RuleSet
	Hazards []string `json:"hazards,omitempty"`
}

// FromRuleSet converts a ruleset (and optional hazards) to an HTTP response.
func FromRuleSet(rs *models.RuleSet, hazards []string) *RuleSetResponse {
	return &RuleSetResponse{RuleSet: rs, Hazards: hazards}
}
