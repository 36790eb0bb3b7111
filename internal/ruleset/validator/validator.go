// Package validator rejects malformed or conflicting rule edits before they
// enter a draft. Validation is whole-list and atomic: every offending rule is
// reported, and a single offender rejects the entire candidate list.
package validator

import (
	"fmt"

	"docgate/internal/ruleset/models"
	dErrors "docgate/pkg/domain-errors"
)

// Validate checks a full candidate rule list plus governance policy.
// On failure it returns a validation error whose details enumerate every
// offending rule, never just the first.
func Validate(rules []models.DocumentRule, governance models.GovernancePolicy) error {
	var issues []string

	firstSeen := make(map[models.RuleKey]int, len(rules))
	for i, rule := range rules {
		if rule.DocumentCategory == "" {
			issues = append(issues, fmt.Sprintf("rule %d: document category cannot be empty", i))
		}
		if !rule.Stage.IsValid() {
			issues = append(issues, fmt.Sprintf("rule %d: invalid stage %q", i, rule.Stage))
		}
		if !rule.Enforcement.IsValid() {
			issues = append(issues, fmt.Sprintf("rule %d: invalid enforcement %q", i, rule.Enforcement))
		}
		if rule.EntitySubtype == "" {
			issues = append(issues, fmt.Sprintf("rule %d: entity subtype cannot be empty (use %q for all)", i, models.SubtypeAll))
		}
		if rule.GracePeriodDays < 0 {
			issues = append(issues, fmt.Sprintf("rule %d: grace period cannot be negative", i))
		}

		key := rule.Key()
		if prev, dup := firstSeen[key]; dup {
			issues = append(issues, fmt.Sprintf("rule %d: duplicate of rule %d (category %q, stage %q, subtype %q)",
				i, prev, key.DocumentCategory, key.Stage, key.EntitySubtype))
		} else {
			firstSeen[key] = i
		}
	}

	if governance.MaxProvisionalValidityDays < 0 {
		issues = append(issues, "governance: max provisional validity days cannot be negative")
	}

	if len(issues) > 0 {
		return dErrors.New(dErrors.CodeValidation, "rule list is invalid").WithDetails(issues...)
	}
	return nil
}
