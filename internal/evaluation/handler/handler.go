package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"docgate/internal/evaluation"
	"docgate/internal/ruleset/models"
	dErrors "docgate/pkg/domain-errors"
	"docgate/pkg/platform/httputil"
	"docgate/pkg/requestcontext"
)

// Service defines the interface for evaluation operations.
type Service interface {
	Evaluate(ctx context.Context, params evaluation.EvaluateParams) (*evaluation.Verdict, error)
	ImpactPreview(ctx context.Context, draftID uuid.UUID, population []evaluation.EntitySnapshot, stage models.Stage) (*evaluation.ImpactSummary, error)
}

// Handler wires evaluation endpoints to the evaluation service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs an evaluation handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts evaluation endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/evaluate", h.HandleEvaluate)
	r.Post("/rulesets/{id}/impact-preview", h.HandleImpactPreview)
}

// HandleEvaluate handles POST /evaluate requests.
func (h *Handler) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	// Require an authenticated actor
	actorID := requestcontext.ActorID(ctx)
	if actorID == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[EvaluateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	params := evaluation.EvaluateParams{
		BranchID:   req.BranchID,
		EntityType: req.ParsedEntityType(),
		RuleSetID:  req.ParsedRuleSetID(),
		Stage:      req.ParsedStage(),
		Entity:     req.Entity,
	}
	if req.Override != nil {
		params.Override = &evaluation.Override{
			ActorID:    actorID,
			ActorRoles: requestcontext.ActorRoles(ctx),
			Reason:     req.Override.Reason,
		}
	}

	verdict, err := h.service.Evaluate(ctx, params)
	if err != nil {
		h.logger.WarnContext(ctx, "evaluation failed",
			"request_id", requestID,
			"entity_id", req.Entity.EntityID,
			"stage", req.Stage,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "entity evaluated",
		"request_id", requestID,
		"entity_id", req.Entity.EntityID,
		"stage", req.Stage,
		"outcome", verdict.Outcome,
		"ruleset_version", verdict.RuleSetVersion,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, verdict)
}

// HandleImpactPreview handles POST /rulesets/{id}/impact-preview requests.
func (h *Handler) HandleImpactPreview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	draftID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid ruleset id"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[ImpactPreviewRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	summary, err := h.service.ImpactPreview(ctx, draftID, req.Population, req.ParsedStage())
	if err != nil {
		h.logger.WarnContext(ctx, "impact preview failed",
			"request_id", requestID,
			"ruleset_id", draftID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "impact preview computed",
		"request_id", requestID,
		"ruleset_id", draftID,
		"evaluated", summary.EvaluatedCount,
		"blocked", summary.BlockedCount,
		"sampled", summary.Sampled,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, summary)
}
