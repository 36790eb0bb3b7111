package evaluation

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"docgate/internal/audit"
	"docgate/internal/evaluation/metrics"
	"docgate/internal/ruleset/models"
	dErrors "docgate/pkg/domain-errors"
	"docgate/pkg/platform/sentinel"
	"docgate/pkg/requestcontext"
)

// RuleSetSource resolves the ruleset a verdict is computed against. When no
// active version exists the latest locked one still governs, so locking the
// active ruleset never leaves a gate unenforced.
type RuleSetSource interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.RuleSet, error)
	FindActive(ctx context.Context, branchID string, entityType models.EntityType) (*models.RuleSet, error)
	FindLatestLocked(ctx context.Context, branchID string, entityType models.EntityType) (*models.RuleSet, error)
}

// AuditPublisher records override bypasses. Appends are fail-closed: an
// override that cannot be recorded must not take effect.
type AuditPublisher interface {
	Emit(ctx context.Context, rec audit.Record) error
}

// Service orchestrates evaluation: it resolves the governing ruleset, runs
// the pure engine, and records every applied override.
type Service struct {
	rulesets       RuleSetSource
	analyzer       *Analyzer
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
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

func WithAnalyzer(a *Analyzer) Option {
	return func(s *Service) {
		s.analyzer = a
	}
}

// NewService constructs a Service.
func NewService(rulesets RuleSetSource, opts ...Option) *Service {
	s := &Service{rulesets: rulesets, analyzer: NewAnalyzer()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EvaluateParams identifies the entity and the ruleset to judge it against.
// RuleSetID pins an explicit version (active or locked, for retrospective
// audits); when nil the active ruleset for (BranchID, EntityType) governs.
type EvaluateParams struct {
	BranchID   string
	EntityType models.EntityType
	RuleSetID  *uuid.UUID
	Stage      models.Stage
	Entity     EntitySnapshot
	Override   *Override
}

// Evaluate computes a compliance verdict for one entity. Overrides that the
// engine applies are appended to the audit log before the verdict is
// returned; if the append fails the whole evaluation fails.
func (s *Service) Evaluate(ctx context.Context, params EvaluateParams) (*Verdict, error) {
	start := time.Now()

	rs, err := s.resolveRuleSet(ctx, params)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	verdict, err := Evaluate(rs, params.Entity, params.Stage, now, params.Override)
	if err != nil {
		return nil, err
	}

	for _, dv := range verdict.Documents {
		if !dv.Overridden {
			continue
		}
		if err := s.recordOverride(ctx, rs, params, dv, now); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record override")
		}
		s.metrics.IncrementOverride()
	}

	s.metrics.IncrementVerdict(string(verdict.Outcome), string(verdict.Stage))
	s.metrics.ObserveEvaluateLatency(time.Since(start))
	return verdict, nil
}

// ImpactPreview runs the candidate draft against a caller-supplied population
// sample. Only drafts may be previewed; published versions already govern
// real traffic.
func (s *Service) ImpactPreview(ctx context.Context, draftID uuid.UUID, population []EntitySnapshot, stage models.Stage) (*ImpactSummary, error) {
	start := time.Now()

	rs, err := s.rulesets.FindByID(ctx, draftID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "ruleset not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load ruleset")
	}
	if rs.Status != models.StatusDraft {
		return nil, dErrors.New(dErrors.CodeConflict, "impact preview requires a draft ruleset")
	}

	summary, err := s.analyzer.Analyze(ctx, rs, population, stage, requestcontext.Now(ctx))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "impact analysis failed")
	}

	s.metrics.ObserveImpactLatency(time.Since(start))
	return summary, nil
}

func (s *Service) resolveRuleSet(ctx context.Context, params EvaluateParams) (*models.RuleSet, error) {
	if params.RuleSetID != nil {
		rs, err := s.rulesets.FindByID(ctx, *params.RuleSetID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return nil, dErrors.New(dErrors.CodeNotFound, "ruleset not found")
			}
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load ruleset")
		}
		// Drafts are working copies; nothing may be judged against them.
		if rs.Status == models.StatusDraft {
			return nil, dErrors.New(dErrors.CodeConflict, "cannot evaluate against a draft ruleset")
		}
		return rs, nil
	}

	rs, err := s.rulesets.FindActive(ctx, params.BranchID, params.EntityType)
	if errors.Is(err, sentinel.ErrNotFound) {
		rs, err = s.rulesets.FindLatestLocked(ctx, params.BranchID, params.EntityType)
	}
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "no active or locked ruleset for branch and entity type")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load governing ruleset")
	}
	return rs, nil
}

func (s *Service) recordOverride(ctx context.Context, rs *models.RuleSet, params EvaluateParams, dv DocumentVerdict, now time.Time) error {
	override := params.Override

	s.logOverride(ctx, params.Entity.EntityID, dv.DocumentCategory, override.ActorID)

	if s.auditPublisher == nil {
		return errors.New("override applied without an audit publisher configured")
	}
	return s.auditPublisher.Emit(ctx, audit.Record{
		Action:           audit.ActionOverrideApplied,
		Timestamp:        now,
		ActorID:          override.ActorID,
		ActorRoles:       override.ActorRoles,
		EntityID:         params.Entity.EntityID,
		RuleID:           dv.RuleID,
		RuleSetID:        rs.ID,
		RuleSetVersion:   rs.Version,
		OriginalOutcome:  string(OutcomeBlock),
		ResultingOutcome: string(OutcomeAllow),
		Reason:           override.Reason,
	})
}

func (s *Service) logOverride(ctx context.Context, entityID, category, actorID string) {
	if s.logger == nil {
		return
	}
	attributes := []any{
		"entity_id", entityID,
		"document_category", category,
		"actor_id", actorID,
		"log_type", "audit",
	}
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	s.logger.InfoContext(ctx, "hard block overridden", attributes...)
}
