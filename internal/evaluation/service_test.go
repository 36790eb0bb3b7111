package evaluation

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docgate/internal/audit"
	"docgate/internal/ruleset/models"
	dErrors "docgate/pkg/domain-errors"
	"docgate/pkg/platform/sentinel"
	"docgate/pkg/requestcontext"
)

type fakeRuleSetSource struct {
	byID   map[uuid.UUID]*models.RuleSet
	active map[string]*models.RuleSet
	locked map[string]*models.RuleSet
}

func newFakeSource(sets ...*models.RuleSet) *fakeRuleSetSource {
	src := &fakeRuleSetSource{
		byID:   make(map[uuid.UUID]*models.RuleSet),
		active: make(map[string]*models.RuleSet),
		locked: make(map[string]*models.RuleSet),
	}
	for _, rs := range sets {
		src.byID[rs.ID] = rs
		key := rs.BranchID + "/" + string(rs.EntityType)
		switch rs.Status {
		case models.StatusActive:
			src.active[key] = rs
		case models.StatusLocked:
			if prev, ok := src.locked[key]; !ok || rs.Version > prev.Version {
				src.locked[key] = rs
			}
		}
	}
	return src
}

func (f *fakeRuleSetSource) FindByID(_ context.Context, id uuid.UUID) (*models.RuleSet, error) {
	rs, ok := f.byID[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return rs, nil
}

func (f *fakeRuleSetSource) FindActive(_ context.Context, branchID string, entityType models.EntityType) (*models.RuleSet, error) {
	rs, ok := f.active[branchID+"/"+string(entityType)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return rs, nil
}

func (f *fakeRuleSetSource) FindLatestLocked(_ context.Context, branchID string, entityType models.EntityType) (*models.RuleSet, error) {
	rs, ok := f.locked[branchID+"/"+string(entityType)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return rs, nil
}

type capturingPublisher struct {
	records []audit.Record
	err     error
}

func (p *capturingPublisher) Emit(_ context.Context, rec audit.Record) error {
	if p.err != nil {
		return p.err
	}
	p.records = append(p.records, rec)
	return nil
}

func activeRuleSet() *models.RuleSet {
	return &models.RuleSet{
		ID:         uuid.New(),
		BranchID:   "branch-1",
		EntityType: models.EntityTypeStudent,
		Version:    3,
		Status:     models.StatusActive,
		Validated:  true,
		Rules: []models.DocumentRule{
			{
				ID:               uuid.New(),
				DocumentCategory: "transfer_certificate",
				EntitySubtype:    models.SubtypeAll,
				Stage:            models.StageAdmission,
				Mandatory:        true,
				Enforcement:      models.EnforcementHardBlock,
				GracePeriodDays:  0,
			},
		},
		Governance: models.GovernancePolicy{OverrideRoles: []string{"super_admin"}},
	}
}

func evalCtx() context.Context {
	return requestcontext.WithTime(context.Background(), trigger)
}

func TestServiceEvaluateUsesActiveRuleSet(t *testing.T) {
	rs := activeRuleSet()
	svc := NewService(newFakeSource(rs))

	verdict, err := svc.Evaluate(evalCtx(), EvaluateParams{
		BranchID:   "branch-1",
		EntityType: models.EntityTypeStudent,
		Stage:      models.StageAdmission,
		Entity:     EntitySnapshot{EntityID: "s-1", EntitySubtype: "regular", StageTriggerDate: trigger},
	})
	require.NoError(t, err)

	assert.Equal(t, OutcomeBlock, verdict.Outcome)
	assert.Equal(t, rs.ID, verdict.RuleSetID)
	assert.Equal(t, 3, verdict.RuleSetVersion)
}

func TestServiceEvaluateFallsBackToLatestLocked(t *testing.T) {
	older := activeRuleSet()
	older.Status = models.StatusLocked
	older.Version = 2
	latest := activeRuleSet()
	latest.Status = models.StatusLocked

	svc := NewService(newFakeSource(older, latest))
	verdict, err := svc.Evaluate(evalCtx(), EvaluateParams{
		BranchID:   "branch-1",
		EntityType: models.EntityTypeStudent,
		Stage:      models.StageAdmission,
		Entity:     EntitySnapshot{EntityID: "s-1", EntitySubtype: "regular", StageTriggerDate: trigger},
	})
	require.NoError(t, err)

	// Locking the active version must not switch the gate off.
	assert.Equal(t, OutcomeBlock, verdict.Outcome)
	assert.Equal(t, latest.ID, verdict.RuleSetID)
	assert.Equal(t, 3, verdict.RuleSetVersion)
}

func TestServiceEvaluateNoActiveRuleSet(t *testing.T) {
	svc := NewService(newFakeSource())

	_, err := svc.Evaluate(evalCtx(), EvaluateParams{
		BranchID:   "branch-1",
		EntityType: models.EntityTypeStudent,
		Stage:      models.StageAdmission,
	})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestServiceEvaluatePinnedLockedVersion(t *testing.T) {
	rs := activeRuleSet()
	rs.Status = models.StatusLocked

	svc := NewService(newFakeSource(rs))
	verdict, err := svc.Evaluate(evalCtx(), EvaluateParams{
		RuleSetID: &rs.ID,
		Stage:     models.StageAdmission,
		Entity:    EntitySnapshot{EntityID: "s-1", EntitySubtype: "regular", StageTriggerDate: trigger},
	})
	require.NoError(t, err)
	assert.Equal(t, rs.ID, verdict.RuleSetID)
}

func TestServiceEvaluateRejectsDraft(t *testing.T) {
	rs := activeRuleSet()
	rs.Status = models.StatusDraft

	svc := NewService(newFakeSource(rs))
	_, err := svc.Evaluate(evalCtx(), EvaluateParams{
		RuleSetID: &rs.ID,
		Stage:     models.StageAdmission,
	})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
}

func TestServiceEvaluateRecordsOverride(t *testing.T) {
	rs := activeRuleSet()
	publisher := &capturingPublisher{}
	svc := NewService(newFakeSource(rs), WithAuditPublisher(publisher))

	verdict, err := svc.Evaluate(evalCtx(), EvaluateParams{
		BranchID:   "branch-1",
		EntityType: models.EntityTypeStudent,
		Stage:      models.StageAdmission,
		Entity:     EntitySnapshot{EntityID: "s-1", EntitySubtype: "regular", StageTriggerDate: trigger},
		Override:   &Override{ActorID: "admin-9", ActorRoles: []string{"super_admin"}, Reason: "board approval pending"},
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeAllow, verdict.Outcome)

	require.Len(t, publisher.records, 1)
	rec := publisher.records[0]
	assert.Equal(t, audit.ActionOverrideApplied, rec.Action)
	assert.Equal(t, "admin-9", rec.ActorID)
	assert.Equal(t, "s-1", rec.EntityID)
	assert.Equal(t, rs.Rules[0].ID, rec.RuleID)
	assert.Equal(t, string(OutcomeBlock), rec.OriginalOutcome)
	assert.Equal(t, string(OutcomeAllow), rec.ResultingOutcome)
	assert.Equal(t, "board approval pending", rec.Reason)
}

func TestServiceEvaluateFailsWhenAuditAppendFails(t *testing.T) {
	rs := activeRuleSet()
	publisher := &capturingPublisher{err: errors.New("disk full")}
	svc := NewService(newFakeSource(rs), WithAuditPublisher(publisher))

	_, err := svc.Evaluate(evalCtx(), EvaluateParams{
		BranchID:   "branch-1",
		EntityType: models.EntityTypeStudent,
		Stage:      models.StageAdmission,
		Entity:     EntitySnapshot{EntityID: "s-1", EntitySubtype: "regular", StageTriggerDate: trigger},
		Override:   &Override{ActorID: "admin-9", ActorRoles: []string{"super_admin"}},
	})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))
}

func TestServiceEvaluateUnauthorizedOverride(t *testing.T) {
	rs := activeRuleSet()
	publisher := &capturingPublisher{}
	svc := NewService(newFakeSource(rs), WithAuditPublisher(publisher))

	_, err := svc.Evaluate(evalCtx(), EvaluateParams{
		BranchID:   "branch-1",
		EntityType: models.EntityTypeStudent,
		Stage:      models.StageAdmission,
		Entity:     EntitySnapshot{EntityID: "s-1", EntitySubtype: "regular", StageTriggerDate: trigger},
		Override:   &Override{ActorID: "clerk-1", ActorRoles: []string{"clerk"}},
	})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
	assert.Empty(t, publisher.records)
}

func TestServiceImpactPreviewRequiresDraft(t *testing.T) {
	rs := activeRuleSet()
	svc := NewService(newFakeSource(rs))

	_, err := svc.ImpactPreview(evalCtx(), rs.ID, nil, models.StageAdmission)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
}

func TestServiceImpactPreview(t *testing.T) {
	rs := activeRuleSet()
	rs.Status = models.StatusDraft
	svc := NewService(newFakeSource(rs))

	population := []EntitySnapshot{
		{EntityID: "s-1", EntitySubtype: "regular", StageTriggerDate: trigger},
		{EntityID: "s-2", EntitySubtype: "regular", StageTriggerDate: trigger,
			Documents: map[string]DocumentRecord{"transfer_certificate": {Status: StatusVerified}}},
	}
	summary, err := svc.ImpactPreview(evalCtx(), rs.ID, population, models.StageAdmission)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.EvaluatedCount)
	assert.Equal(t, 1, summary.BlockedCount)
}

func TestServiceImpactPreviewUnknownRuleSet(t *testing.T) {
	svc := NewService(newFakeSource())

	_, err := svc.ImpactPreview(evalCtx(), uuid.New(), nil, models.StageAdmission)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}
