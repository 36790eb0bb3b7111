// Package evaluation decides, for one entity at one point in time, whether a
// gated action may proceed given the documents the entity has submitted.
//
// Evaluate is a pure function over its inputs: a ruleset snapshot, an entity
// snapshot, and a clock value. It reads no external state, so identical
// inputs always produce identical verdicts and concurrent evaluations need
// no locking.
package evaluation

import (
	"sort"
	"time"

	"docgate/internal/ruleset/models"
	dErrors "docgate/pkg/domain-errors"
)

// Evaluate produces an enforcement verdict for the entity at the given stage.
//
// Per applicable rule: a verified document always passes; otherwise the
// document's grace deadline is computed (capped by the provisional ceiling
// when the entity is provisional and provisional admission is allowed), and
// the rule's enforcement level applies once the deadline has passed. A
// supplied override must be authorized by the ruleset's governance policy or
// the whole call fails; it never silently degrades to a block.
func Evaluate(rs *models.RuleSet, entity EntitySnapshot, stage models.Stage, now time.Time, override *Override) (*Verdict, error) {
	if override != nil && !rs.Governance.AllowsOverride(override.ActorRoles) {
		return nil, dErrors.New(dErrors.CodeForbidden, "override requested without a qualifying role")
	}

	verdict := &Verdict{
		Outcome:        OutcomeAllow,
		Stage:          stage,
		RuleSetID:      rs.ID,
		RuleSetVersion: rs.Version,
		EvaluatedAt:    now,
	}

	for _, rule := range effectiveRules(rs.Rules, stage, entity.EntitySubtype) {
		dv := evaluateRule(rule, rs.Governance, entity, now, override)
		verdict.Documents = append(verdict.Documents, dv)
		verdict.Outcome = MostRestrictive(verdict.Outcome, dv.Outcome)
	}

	return verdict, nil
}

func evaluateRule(rule models.DocumentRule, governance models.GovernancePolicy, entity EntitySnapshot, now time.Time, override *Override) DocumentVerdict {
	dv := DocumentVerdict{
		DocumentCategory: rule.DocumentCategory,
		RuleID:           rule.ID,
		Enforcement:      rule.Enforcement,
	}

	// A verified document passes unconditionally; grace and enforcement
	// never apply to it.
	if entity.Document(rule.DocumentCategory).Status == StatusVerified {
		dv.Outcome = OutcomeAllow
		return dv
	}

	deadline := graceDeadline(rule, governance, entity)
	if now.Before(deadline) {
		remaining := int(deadline.Sub(now).Hours() / 24)
		dv.Outcome = OutcomeWarn
		dv.DaysRemainingInGrace = &remaining
		return dv
	}

	switch rule.Enforcement {
	case models.EnforcementHardBlock:
		if override != nil {
			// Authorization was checked up front; reaching here means the
			// bypass is permitted.
			dv.Outcome = OutcomeAllow
			dv.Overridden = true
		} else {
			dv.Outcome = OutcomeBlock
		}
	default:
		// InfoOnly and SoftWarning never block; callers distinguish them
		// through the enforcement field.
		dv.Outcome = OutcomeWarn
	}
	return dv
}

// graceDeadline computes the instant at which a missing or unverified
// document starts enforcing. The provisional ceiling can only shorten
// tolerance, never lengthen it: when the entity is provisional and
// provisional admission is allowed, the rule's grace period is capped by the
// governance ceiling and the deadline never exceeds the provisional start
// plus that ceiling.
func graceDeadline(rule models.DocumentRule, governance models.GovernancePolicy, entity EntitySnapshot) time.Time {
	grace := rule.GracePeriodDays

	provisional := entity.IsProvisional && governance.ProvisionalAdmissionAllowed
	if provisional && governance.MaxProvisionalValidityDays < grace {
		grace = governance.MaxProvisionalValidityDays
	}

	deadline := entity.StageTriggerDate.AddDate(0, 0, grace)
	if provisional && !entity.ProvisionalStartDate.IsZero() {
		ceiling := entity.ProvisionalStartDate.AddDate(0, 0, governance.MaxProvisionalValidityDays)
		if ceiling.Before(deadline) {
			deadline = ceiling
		}
	}
	return deadline
}

// effectiveRules resolves the applicable rules for a stage and subtype, one
// per document category. Duplicate matches per category should not survive
// validation, but can occur across superseded or merged configurations; they
// resolve fail-closed: the most restrictive enforcement wins and the
// smallest grace period wins. Output is ordered by category so repeated
// evaluations produce identical verdicts.
func effectiveRules(rules []models.DocumentRule, stage models.Stage, entitySubtype string) []models.DocumentRule {
	merged := make(map[string]models.DocumentRule)
	for _, rule := range rules {
		if !rule.AppliesTo(stage, entitySubtype) {
			continue
		}
		current, ok := merged[rule.DocumentCategory]
		if !ok {
			merged[rule.DocumentCategory] = rule
			continue
		}
		if rule.Enforcement.Restrictiveness() > current.Enforcement.Restrictiveness() {
			current.ID = rule.ID
			current.Enforcement = rule.Enforcement
		}
		if rule.GracePeriodDays < current.GracePeriodDays {
			current.GracePeriodDays = rule.GracePeriodDays
		}
		current.Mandatory = current.Mandatory || rule.Mandatory
		merged[rule.DocumentCategory] = current
	}

	out := make([]models.DocumentRule, 0, len(merged))
	for _, rule := range merged {
		out = append(out, rule)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].DocumentCategory < out[j].DocumentCategory
	})
	return out
}
