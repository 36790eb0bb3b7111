package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"docgate/internal/audit"
	"docgate/internal/ruleset/metrics"
	"docgate/internal/ruleset/models"
	"docgate/internal/ruleset/store"
	"docgate/internal/ruleset/validator"
	dErrors "docgate/pkg/domain-errors"
	"docgate/pkg/platform/sentinel"
	pstrings "docgate/pkg/platform/strings"
	"docgate/pkg/requestcontext"
)

// AuditPublisher records lifecycle events. Lifecycle appends are best-effort:
// by the time they run the transition is already committed, so a failed
// append is logged, not rolled back.
type AuditPublisher interface {
	Emit(ctx context.Context, rec audit.Record) error
}

// ActiveCache is a read-through cache for the active ruleset per
// (branch, entity type). A nil result with nil error is a miss.
type ActiveCache interface {
	Get(ctx context.Context, branchID string, entityType models.EntityType) (*models.RuleSet, error)
	Set(ctx context.Context, rs *models.RuleSet) error
	Invalidate(ctx context.Context, branchID string, entityType models.EntityType) error
}

// Service orchestrates ruleset authoring and lifecycle.
type Service struct {
	store          store.Store
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	cache          ActiveCache
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithCache(cache ActiveCache) Option {
	return func(s *Service) {
		s.cache = cache
	}
}

// New constructs a Service.
func New(st store.Store, opts ...Option) *Service {
	s := &Service{store: st}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateDraft creates a validated draft for the key. The rule list is
// validated as a whole before anything is persisted; a single invalid rule
// rejects the entire submission. Returns the draft and its configuration
// hazards (non-blocking warnings).
func (s *Service) CreateDraft(ctx context.Context, branchID string, entityType models.EntityType, rules []models.DocumentRule, governance models.GovernancePolicy) (*models.RuleSet, []string, error) {
	now := requestcontext.Now(ctx)

	draft, err := models.NewDraft(branchID, entityType, now)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, nil, err
	}

	assignRuleIDs(rules)
	governance.OverrideRoles = pstrings.DedupeAndTrim(governance.OverrideRoles)
	if err := validator.Validate(rules, governance); err != nil {
		s.metrics.IncrementValidationFailure()
		return nil, nil, err
	}
	draft.ApplyUpdate(rules, governance, now)
	draft.MarkValidated()

	if err := s.store.CreateDraft(ctx, draft); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, nil, dErrors.New(dErrors.CodeConflict, "a draft already exists for this branch and entity type")
		}
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create draft")
	}

	s.metrics.IncrementDraftCreated(string(entityType))
	return draft, draft.ConfigurationHazards(), nil
}

// UpdateDraft replaces the draft's full rule list and governance policy.
// Partial acceptance is forbidden; on any validation failure the stored draft
// is untouched.
func (s *Service) UpdateDraft(ctx context.Context, id uuid.UUID, rules []models.DocumentRule, governance models.GovernancePolicy) (*models.RuleSet, []string, error) {
	rs, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if err := rs.CanUpdate(); err != nil {
		return nil, nil, err
	}

	assignRuleIDs(rules)
	governance.OverrideRoles = pstrings.DedupeAndTrim(governance.OverrideRoles)
	if err := validator.Validate(rules, governance); err != nil {
		s.metrics.IncrementValidationFailure()
		return nil, nil, err
	}
	now := requestcontext.Now(ctx)
	rs.ApplyUpdate(rules, governance, now)
	rs.MarkValidated()

	if err := s.store.UpdateDraft(ctx, rs); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil, dErrors.New(dErrors.CodeNotFound, "ruleset not found")
		}
		if dErrors.HasCode(err, dErrors.CodeConflict) {
			return nil, nil, err
		}
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update draft")
	}

	return rs, rs.ConfigurationHazards(), nil
}

// Activate atomically publishes the draft as the next active version,
// locking the previously active version as superseded. Exactly one of two
// concurrent activations for the same key succeeds.
func (s *Service) Activate(ctx context.Context, draftID uuid.UUID) (*models.RuleSet, error) {
	now := requestcontext.Now(ctx)

	active, superseded, err := s.store.Activate(ctx, draftID, now)
	if err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, dErrors.New(dErrors.CodeNotFound, "ruleset not found")
		case errors.Is(err, sentinel.ErrConflict):
			return nil, dErrors.New(dErrors.CodeConflict, "a concurrent activation won for this branch and entity type")
		case dErrors.HasCode(err, dErrors.CodeConflict):
			return nil, err
		default:
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to activate draft")
		}
	}

	actorID, actorRoles := requestcontext.ActorID(ctx), requestcontext.ActorRoles(ctx)
	s.emitLifecycle(ctx, audit.Record{
		Action:         audit.ActionRuleSetActivated,
		Timestamp:      now,
		ActorID:        actorID,
		ActorRoles:     actorRoles,
		RuleSetID:      active.ID,
		RuleSetVersion: active.Version,
	})
	s.metrics.IncrementTransition(string(models.StatusActive))

	if superseded != nil {
		s.emitLifecycle(ctx, audit.Record{
			Action:         audit.ActionRuleSetSuperseded,
			Timestamp:      now,
			ActorID:        models.LockedBySuperseded,
			RuleSetID:      superseded.ID,
			RuleSetVersion: superseded.Version,
			SnapshotHash:   superseded.SnapshotHash,
		})
		s.metrics.IncrementTransition(string(models.StatusLocked))
	}

	s.refreshCache(ctx, active)
	return active, nil
}

// Lock makes an active ruleset terminal. canLock is the caller's permission
// decision; this service does not interpret roles.
func (s *Service) Lock(ctx context.Context, id uuid.UUID, canLock bool) (*models.RuleSet, error) {
	if !canLock {
		return nil, dErrors.New(dErrors.CodeForbidden, "actor is not permitted to lock rulesets")
	}
	now := requestcontext.Now(ctx)
	actorID := requestcontext.ActorID(ctx)

	rs, err := s.store.Lock(ctx, id, actorID, now)
	if err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, dErrors.New(dErrors.CodeNotFound, "ruleset not found")
		case dErrors.HasCode(err, dErrors.CodeConflict):
			return nil, err
		default:
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to lock ruleset")
		}
	}

	s.emitLifecycle(ctx, audit.Record{
		Action:         audit.ActionRuleSetLocked,
		Timestamp:      now,
		ActorID:        actorID,
		ActorRoles:     requestcontext.ActorRoles(ctx),
		RuleSetID:      rs.ID,
		RuleSetVersion: rs.Version,
		SnapshotHash:   rs.SnapshotHash,
	})
	s.metrics.IncrementTransition(string(models.StatusLocked))

	s.invalidateCache(ctx, rs.BranchID, rs.EntityType)
	return rs, nil
}

// GetByID returns a ruleset regardless of status.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*models.RuleSet, error) {
	rs, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "ruleset not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load ruleset")
	}
	return rs, nil
}

// GetActive returns the ruleset currently governing the key, reading through
// the cache when one is configured. When no active version exists the latest
// locked version still governs, so a lock without a successor does not leave
// the key unenforced.
func (s *Service) GetActive(ctx context.Context, branchID string, entityType models.EntityType) (*models.RuleSet, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, branchID, entityType)
		switch {
		case err != nil:
			s.metrics.IncrementCacheLookup("error")
			s.logWarn(ctx, "active ruleset cache read failed", "error", err)
		case cached != nil:
			s.metrics.IncrementCacheLookup("hit")
			return cached, nil
		default:
			s.metrics.IncrementCacheLookup("miss")
		}
	}

	rs, err := s.store.FindActive(ctx, branchID, entityType)
	if errors.Is(err, sentinel.ErrNotFound) {
		rs, err = s.store.FindLatestLocked(ctx, branchID, entityType)
	}
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "no active or locked ruleset for branch and entity type")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load governing ruleset")
	}

	s.refreshCache(ctx, rs)
	return rs, nil
}

// GetVersion returns the ruleset with the given version for the key, for
// retrospective audits. A nil version means the latest locked version.
func (s *Service) GetVersion(ctx context.Context, branchID string, entityType models.EntityType, version *int) (*models.RuleSet, error) {
	var rs *models.RuleSet
	var err error
	if version != nil {
		rs, err = s.store.FindByVersion(ctx, branchID, entityType, *version)
	} else {
		rs, err = s.store.FindLatestLocked(ctx, branchID, entityType)
	}
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "no such ruleset version")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load ruleset version")
	}
	return rs, nil
}

// assignRuleIDs gives server-side identities to rules submitted without one,
// so audit records can reference the exact rule that was overridden.
func assignRuleIDs(rules []models.DocumentRule) {
	for i := range rules {
		if rules[i].ID == uuid.Nil {
			rules[i].ID = uuid.New()
		}
	}
}

func (s *Service) emitLifecycle(ctx context.Context, rec audit.Record) {
	if s.logger != nil {
		attributes := []any{
			"action", string(rec.Action),
			"ruleset_id", rec.RuleSetID,
			"ruleset_version", rec.RuleSetVersion,
			"log_type", "audit",
		}
		if requestID := requestcontext.RequestID(ctx); requestID != "" {
			attributes = append(attributes, "request_id", requestID)
		}
		s.logger.InfoContext(ctx, string(rec.Action), attributes...)
	}
	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, rec); err != nil {
		s.logWarn(ctx, "failed to append lifecycle audit record", "action", string(rec.Action), "error", err)
	}
}

func (s *Service) refreshCache(ctx context.Context, rs *models.RuleSet) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, rs); err != nil {
		s.logWarn(ctx, "active ruleset cache write failed", "error", err)
	}
}

func (s *Service) invalidateCache(ctx context.Context, branchID string, entityType models.EntityType) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, branchID, entityType); err != nil {
		s.logWarn(ctx, "active ruleset cache invalidation failed", "error", err)
	}
}

func (s *Service) logWarn(ctx context.Context, msg string, args ...any) {
	if s.logger != nil {
		s.logger.WarnContext(ctx, msg, args...)
	}
}
