package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docgate/internal/ruleset/models"
	dErrors "docgate/pkg/domain-errors"
)

func validRule(category string, stage models.Stage, subtype string) models.DocumentRule {
	return models.DocumentRule{
		DocumentCategory: category,
		EntitySubtype:    subtype,
		Stage:            stage,
		Mandatory:        true,
		Enforcement:      models.EnforcementHardBlock,
		GracePeriodDays:  5,
		VerifierRole:     "registrar",
	}
}

func TestValidateAcceptsCleanRuleList(t *testing.T) {
	rules := []models.DocumentRule{
		validRule("transfer_certificate", models.StageAdmission, models.SubtypeAll),
		validRule("transfer_certificate", models.StageExam, models.SubtypeAll),
		validRule("id_proof", models.StageAdmission, models.SubtypeAll),
	}
	require.NoError(t, Validate(rules, models.GovernancePolicy{MaxProvisionalValidityDays: 45}))
}

func TestValidateRejectsDuplicateKeys(t *testing.T) {
	rules := []models.DocumentRule{
		validRule("transfer_certificate", models.StageAdmission, models.SubtypeAll),
		validRule("transfer_certificate", models.StageAdmission, models.SubtypeAll),
	}
	err := Validate(rules, models.GovernancePolicy{})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestValidateReportsEveryOffender(t *testing.T) {
	rules := []models.DocumentRule{
		{DocumentCategory: "", EntitySubtype: models.SubtypeAll, Stage: models.StageAdmission, Enforcement: models.EnforcementInfoOnly},
		{DocumentCategory: "id_proof", EntitySubtype: models.SubtypeAll, Stage: "graduation", Enforcement: models.EnforcementInfoOnly},
		{DocumentCategory: "photo", EntitySubtype: models.SubtypeAll, Stage: models.StageAdmission, Enforcement: models.EnforcementSoftWarning, GracePeriodDays: -1},
	}
	err := Validate(rules, models.GovernancePolicy{MaxProvisionalValidityDays: -5})
	require.Error(t, err)

	de := dErrors.Load(err)
	require.NotNil(t, de)
	// empty category, invalid stage, negative grace, negative governance ceiling
	assert.Len(t, de.Details, 4)
}

func TestValidateDistinguishesSubtypes(t *testing.T) {
	// Same category and stage but different subtypes is not a duplicate.
	rules := []models.DocumentRule{
		validRule("experience_letter", models.StageJoining, "teaching"),
		validRule("experience_letter", models.StageJoining, "non_teaching"),
	}
	require.NoError(t, Validate(rules, models.GovernancePolicy{}))
}

func TestValidateIsAtomic(t *testing.T) {
	// One bad rule rejects the whole list even when others are fine.
	rules := []models.DocumentRule{
		validRule("transfer_certificate", models.StageAdmission, models.SubtypeAll),
		{DocumentCategory: "photo", EntitySubtype: models.SubtypeAll, Stage: models.StageAdmission, Enforcement: "hard", GracePeriodDays: 0},
	}
	err := Validate(rules, models.GovernancePolicy{})
	require.Error(t, err)
}
