//go:build integration

package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"docgate/internal/ruleset/cache"
	"docgate/internal/ruleset/models"
	"docgate/pkg/testutil/containers"
)

type ActiveCacheSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	cache *cache.Active
	now   time.Time
}

func TestActiveCacheSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(ActiveCacheSuite))
}

func (s *ActiveCacheSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.cache = cache.New(s.redis.Client)
	s.now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
}

func (s *ActiveCacheSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *ActiveCacheSuite) activeRuleSet(branchID string) *models.RuleSet {
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
	draft.ApplyActivation(1, s.now)
	return draft
}

func (s *ActiveCacheSuite) TestMissReturnsNil() {
	rs, err := s.cache.Get(context.Background(), "branch-x", models.EntityTypeStudent)
	s.Require().NoError(err)
	s.Nil(rs)
}

func (s *ActiveCacheSuite) TestRoundTrip() {
	ctx := context.Background()
	rs := s.activeRuleSet("branch-a")
	s.Require().NoError(s.cache.Set(ctx, rs))

	found, err := s.cache.Get(ctx, "branch-a", models.EntityTypeStudent)
	s.Require().NoError(err)
	s.Require().NotNil(found)
	s.Equal(rs.ID, found.ID)
	s.Equal(1, found.Version)
	s.Equal(models.StatusActive, found.Status)
	s.Len(found.Rules, 1)
}

func (s *ActiveCacheSuite) TestKeysAreScopedByBranch() {
	ctx := context.Background()
	s.Require().NoError(s.cache.Set(ctx, s.activeRuleSet("branch-a")))

	found, err := s.cache.Get(ctx, "branch-b", models.EntityTypeStudent)
	s.Require().NoError(err)
	s.Nil(found)
}

func (s *ActiveCacheSuite) TestInvalidate() {
	ctx := context.Background()
	rs := s.activeRuleSet("branch-a")
	s.Require().NoError(s.cache.Set(ctx, rs))
	s.Require().NoError(s.cache.Invalidate(ctx, "branch-a", models.EntityTypeStudent))

	found, err := s.cache.Get(ctx, "branch-a", models.EntityTypeStudent)
	s.Require().NoError(err)
	s.Nil(found)
}

func (s *ActiveCacheSuite) TestCorruptEntryIsAMiss() {
	ctx := context.Background()
	err := s.redis.Client.Set(ctx, "rs:active:branch-a:student", "{not json", time.Minute).Err()
	s.Require().NoError(err)

	found, err := s.cache.Get(ctx, "branch-a", models.EntityTypeStudent)
	s.Require().NoError(err)
	s.Nil(found)
}

func (s *ActiveCacheSuite) TestEntryExpires() {
	ctx := context.Background()
	short := cache.New(s.redis.Client, cache.WithTTL(time.Second))
	s.Require().NoError(short.Set(ctx, s.activeRuleSet("branch-a")))

	s.Require().Eventually(func() bool {
		found, err := short.Get(ctx, "branch-a", models.EntityTypeStudent)
		return err == nil && found == nil
	}, 5*time.Second, 200*time.Millisecond)
}
