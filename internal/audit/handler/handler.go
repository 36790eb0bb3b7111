package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"docgate/internal/audit"
	dErrors "docgate/pkg/domain-errors"
	"docgate/pkg/platform/httputil"
)

// Trail reads the audit log.
type Trail interface {
	ListByEntity(ctx context.Context, entityID string) ([]audit.Record, error)
}

// Handler exposes the audit trail over HTTP, read-only.
type Handler struct {
	trail  Trail
	logger *slog.Logger
}

// New constructs an audit handler.
func New(trail Trail, logger *slog.Logger) *Handler {
	return &Handler{trail: trail, logger: logger}
}

// Register mounts audit endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/audit/entities/{entityId}", h.HandleListByEntity)
}

// HandleListByEntity handles GET /audit/entities/{entityId} requests.
func (h *Handler) HandleListByEntity(w http.ResponseWriter, r *http.Request) {
	entityID := strings.TrimSpace(chi.URLParam(r, "entityId"))
	if entityID == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "entity id is required"))
		return
	}

	records, err := h.trail.ListByEntity(r.Context(), entityID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list audit records",
			"entity_id", entityID,
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list audit records"))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"entity_id": entityID,
		"records":   records,
	})
}
