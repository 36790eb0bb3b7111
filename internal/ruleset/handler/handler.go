package handler

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"docgate/internal/ruleset/models"
	dErrors "docgate/pkg/domain-errors"
	"docgate/pkg/platform/httputil"
	"docgate/pkg/requestcontext"
)

// Service defines the interface for ruleset authoring and lifecycle
// operations.
type Service interface {
	CreateDraft(ctx context.Context, branchID string, entityType models.EntityType, rules []models.DocumentRule, governance models.GovernancePolicy) (*models.RuleSet, []string, error)
	UpdateDraft(ctx context.Context, id uuid.UUID, rules []models.DocumentRule, governance models.GovernancePolicy) (*models.RuleSet, []string, error)
	Activate(ctx context.Context, draftID uuid.UUID) (*models.RuleSet, error)
	Lock(ctx context.Context, id uuid.UUID, canLock bool) (*models.RuleSet, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.RuleSet, error)
	GetActive(ctx context.Context, branchID string, entityType models.EntityType) (*models.RuleSet, error)
	GetVersion(ctx context.Context, branchID string, entityType models.EntityType, version *int) (*models.RuleSet, error)
}

// Handler wires ruleset endpoints to the ruleset service.
type Handler struct {
	service   Service
	logger    *slog.Logger
	lockRoles []string
}

// New constructs a ruleset handler. lockRoles names the actor roles allowed
// to lock an active ruleset; the permission decision happens here, at the
// edge, so the service stays role-agnostic.
func New(service Service, logger *slog.Logger, lockRoles []string) *Handler {
	return &Handler{
		service:   service,
		logger:    logger,
		lockRoles: lockRoles,
	}
}

// Register mounts the authoring and lifecycle mutations on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/rulesets", h.HandleCreate)
	r.Put("/rulesets/{id}", h.HandleUpdate)
	r.Post("/rulesets/{id}/activate", h.HandleActivate)
	r.Post("/rulesets/{id}/lock", h.HandleLock)
}

// RegisterReads mounts the read-only ruleset endpoints, which need a lighter
// authorization level than mutations.
func (h *Handler) RegisterReads(r chi.Router) {
	r.Get("/rulesets/active", h.HandleGetActive)
	r.Get("/rulesets/versions", h.HandleGetVersion)
	r.Get("/rulesets/{id}", h.HandleGetByID)
}

// HandleCreate handles POST /rulesets requests.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreateRuleSetRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	rs, hazards, err := h.service.CreateDraft(ctx, req.BranchID, req.ParsedEntityType(), req.Rules, req.Governance)
	if err != nil {
		h.logger.WarnContext(ctx, "draft creation failed",
			"request_id", requestID,
			"branch_id", req.BranchID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "draft created",
		"request_id", requestID,
		"ruleset_id", rs.ID,
		"branch_id", rs.BranchID,
		"entity_type", rs.EntityType,
		"rule_count", len(rs.Rules),
	)
	httputil.WriteJSON(w, http.StatusCreated, FromRuleSet(rs, hazards))
}

// HandleUpdate handles PUT /rulesets/{id} requests.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[UpdateRuleSetRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	rs, hazards, err := h.service.UpdateDraft(ctx, id, req.Rules, req.Governance)
	if err != nil {
		h.logger.WarnContext(ctx, "draft update failed",
			"request_id", requestID,
			"ruleset_id", id,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "draft updated",
		"request_id", requestID,
		"ruleset_id", rs.ID,
		"rule_count", len(rs.Rules),
	)
	httputil.WriteJSON(w, http.StatusOK, FromRuleSet(rs, hazards))
}

// HandleActivate handles POST /rulesets/{id}/activate requests.
func (h *Handler) HandleActivate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	rs, err := h.service.Activate(ctx, id)
	if err != nil {
		h.logger.WarnContext(ctx, "activation failed",
			"request_id", requestID,
			"ruleset_id", id,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "ruleset activated",
		"request_id", requestID,
		"ruleset_id", rs.ID,
		"version", rs.Version,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, FromRuleSet(rs, nil))
}

// HandleLock handles POST /rulesets/{id}/lock requests.
func (h *Handler) HandleLock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	canLock := h.actorCanLock(requestcontext.ActorRoles(ctx))
	rs, err := h.service.Lock(ctx, id, canLock)
	if err != nil {
		h.logger.WarnContext(ctx, "lock failed",
			"request_id", requestID,
			"ruleset_id", id,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "ruleset locked",
		"request_id", requestID,
		"ruleset_id", rs.ID,
		"version", rs.Version,
		"snapshot_hash", rs.SnapshotHash,
	)
	httputil.WriteJSON(w, http.StatusOK, FromRuleSet(rs, nil))
}

// HandleGetByID handles GET /rulesets/{id} requests.
func (h *Handler) HandleGetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	rs, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromRuleSet(rs, nil))
}

// HandleGetActive handles GET /rulesets/active requests.
func (h *Handler) HandleGetActive(w http.ResponseWriter, r *http.Request) {
	branchID, entityType, ok := h.queryKey(w, r)
	if !ok {
		return
	}

	rs, err := h.service.GetActive(r.Context(), branchID, entityType)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromRuleSet(rs, nil))
}

// HandleGetVersion handles GET /rulesets/versions requests. Without a
// version query parameter it returns the latest locked version.
func (h *Handler) HandleGetVersion(w http.ResponseWriter, r *http.Request) {
	branchID, entityType, ok := h.queryKey(w, r)
	if !ok {
		return
	}

	var version *int
	if raw := r.URL.Query().Get("version"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "version must be a positive integer"))
			return
		}
		version = &v
	}

	rs, err := h.service.GetVersion(r.Context(), branchID, entityType, version)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromRuleSet(rs, nil))
}

func (h *Handler) actorCanLock(roles []string) bool {
	return slices.ContainsFunc(roles, func(role string) bool {
		return slices.Contains(h.lockRoles, role)
	})
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid ruleset id"))
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) queryKey(w http.ResponseWriter, r *http.Request) (string, models.EntityType, bool) {
	branchID := strings.TrimSpace(r.URL.Query().Get("branch_id"))
	if branchID == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "branch_id is required"))
		return "", "", false
	}
	entityType, err := models.ParseEntityType(strings.TrimSpace(r.URL.Query().Get("entity_type")))
	if err != nil {
		httputil.WriteError(w, err)
		return "", "", false
	}
	return branchID, entityType, true
}
