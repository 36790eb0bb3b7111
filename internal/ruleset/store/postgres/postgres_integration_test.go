//go:build integration

package postgres_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"docgate/internal/ruleset/models"
	"docgate/internal/ruleset/store/postgres"
	"docgate/pkg/platform/sentinel"
	"docgate/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *postgres.Store
	now      time.Time
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = postgres.New(s.postgres.DB)
	s.Require().NoError(s.store.Migrate(context.Background()))
	s.now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "rulesets"))
}

func (s *PostgresStoreSuite) newValidatedDraft(branchID string) *models.RuleSet {
	draft, err := models.NewDraft(branchID, models.EntityTypeStudent, s.now)
	s.Require().NoError(err)
	draft.ApplyUpdate([]models.DocumentRule{
		{
			DocumentCategory: "transfer_certificate",
			EntitySubtype:    models.SubtypeAll,
			Stage:            models.StageAdmission,
			Mandatory:        true,
			Enforcement:      models.EnforcementHardBlock,
			GracePeriodDays:  5,
		},
	}, models.GovernancePolicy{OverrideRoles: []string{"super_admin"}}, s.now)
	draft.MarkValidated()
	return draft
}

func (s *PostgresStoreSuite) TestDraftRoundTrip() {
	ctx := context.Background()
	draft := s.newValidatedDraft("branch-a")
	s.Require().NoError(s.store.CreateDraft(ctx, draft))

	found, err := s.store.FindByID(ctx, draft.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusDraft, found.Status)
	s.Len(found.Rules, 1)
	s.Equal([]string{"super_admin"}, found.Governance.OverrideRoles)
}

func (s *PostgresStoreSuite) TestSingleDraftPerKey() {
	ctx := context.Background()
	s.Require().NoError(s.store.CreateDraft(ctx, s.newValidatedDraft("branch-b")))

	err := s.store.CreateDraft(ctx, s.newValidatedDraft("branch-b"))
	s.Require().ErrorIs(err, sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestActivationSupersedesOldActive() {
	ctx := context.Background()

	first := s.newValidatedDraft("branch-c")
	s.Require().NoError(s.store.CreateDraft(ctx, first))
	active, superseded, err := s.store.Activate(ctx, first.ID, s.now)
	s.Require().NoError(err)
	s.Nil(superseded)
	s.Equal(1, active.Version)

	second := s.newValidatedDraft("branch-c")
	s.Require().NoError(s.store.CreateDraft(ctx, second))
	active, superseded, err = s.store.Activate(ctx, second.ID, s.now.Add(time.Hour))
	s.Require().NoError(err)
	s.Equal(2, active.Version)
	s.Require().NotNil(superseded)
	s.Equal(models.StatusLocked, superseded.Status)
	s.Equal(models.LockedBySuperseded, superseded.LockedBy)

	old, err := s.store.FindByVersion(ctx, "branch-c", models.EntityTypeStudent, 1)
	s.Require().NoError(err)
	s.Equal(models.StatusLocked, old.Status)
	s.NotEmpty(old.SnapshotHash)
}

// TestConcurrentActivation verifies that racing activations of two drafts for
// the same key produce exactly one winner per draft id and never two actives.
func (s *PostgresStoreSuite) TestConcurrentActivation() {
	ctx := context.Background()
	draft := s.newValidatedDraft("branch-d")
	s.Require().NoError(s.store.CreateDraft(ctx, draft))

	const goroutines = 10
	var wg sync.WaitGroup
	var successCount atomic.Int32

	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := s.store.Activate(ctx, draft.ID, s.now); err == nil {
				successCount.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), successCount.Load())

	active, err := s.store.FindActive(ctx, "branch-d", models.EntityTypeStudent)
	s.Require().NoError(err)
	s.Equal(1, active.Version)
}

func (s *PostgresStoreSuite) TestLockedIsImmutable() {
	ctx := context.Background()
	draft := s.newValidatedDraft("branch-e")
	s.Require().NoError(s.store.CreateDraft(ctx, draft))
	_, _, err := s.store.Activate(ctx, draft.ID, s.now)
	s.Require().NoError(err)

	locked, err := s.store.Lock(ctx, draft.ID, "actor-1", s.now)
	s.Require().NoError(err)
	s.Equal(models.StatusLocked, locked.Status)

	stale := s.newValidatedDraft("branch-e")
	stale.ID = draft.ID
	s.Require().Error(s.store.UpdateDraft(ctx, stale))

	_, err = s.store.Lock(ctx, draft.ID, "actor-2", s.now)
	s.Require().Error(err)
}
