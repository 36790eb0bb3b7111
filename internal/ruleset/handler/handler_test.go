package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"docgate/internal/ruleset/service"
	"docgate/internal/ruleset/store/memory"
	"docgate/pkg/platform/middleware/requesttime"
	"docgate/pkg/requestcontext"
)

func newRuleSetRouter(roles ...string) http.Handler {
	svc := service.New(memory.NewInMemory())
	h := New(svc, slog.New(slog.NewTextHandler(io.Discard, nil)), []string{"registrar_head"})

	r := chi.NewRouter()
	r.Use(requesttime.Middleware)
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := requestcontext.WithActor(req.Context(), "admin-1", roles)
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	h.Register(r)
	h.RegisterReads(r)
	return r
}

func createPayload() map[string]any {
	return map[string]any{
		"branch_id":   "branch-1",
		"entity_type": "student",
		"rules": []map[string]any{
			{
				"document_category": "transfer_certificate",
				"entity_subtype":    "all",
				"stage":             "admission",
				"mandatory":         true,
				"enforcement":       "hard_block",
				"grace_period_days": 15,
			},
		},
		"governance": map[string]any{
			"override_roles": []string{"super_admin"},
		},
	}
}

func doJSON(t *testing.T, router http.Handler, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			t.Fatalf("failed to encode payload: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeRuleSet(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp
}

func TestCreateDraftViaHandler(t *testing.T) {
	router := newRuleSetRouter()

	rec := doJSON(t, router, http.MethodPost, "/rulesets", createPayload())
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 creating draft, got %d: %s", rec.Code, rec.Body.String())
	}

	resp := decodeRuleSet(t, rec)
	if resp["status"] != "draft" {
		t.Fatalf("expected draft status, got %v", resp["status"])
	}
	if _, err := uuid.Parse(resp["id"].(string)); err != nil {
		t.Fatalf("expected ruleset id in response: %v", err)
	}
}

func TestCreateDraftValidationErrorListsEveryOffender(t *testing.T) {
	router := newRuleSetRouter()

	payload := createPayload()
	payload["rules"] = []map[string]any{
		{"document_category": "", "entity_subtype": "all", "stage": "admission", "enforcement": "hard_block"},
		{"document_category": "photo", "entity_subtype": "all", "stage": "admission", "enforcement": "hard_block", "grace_period_days": -1},
	}

	rec := doJSON(t, router, http.MethodPost, "/rulesets", payload)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}

	var resp struct {
		Error   string   `json:"error"`
		Details []string `json:"details"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if resp.Error != "validation_error" {
		t.Fatalf("expected validation_error, got %q", resp.Error)
	}
	if len(resp.Details) != 2 {
		t.Fatalf("expected 2 detail entries, got %d: %v", len(resp.Details), resp.Details)
	}
}

func TestActivateAndGetActiveViaHandlers(t *testing.T) {
	router := newRuleSetRouter()

	rec := doJSON(t, router, http.MethodPost, "/rulesets", createPayload())
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	id := decodeRuleSet(t, rec)["id"].(string)

	rec = doJSON(t, router, http.MethodPost, "/rulesets/"+id+"/activate", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 activating, got %d: %s", rec.Code, rec.Body.String())
	}
	if v := decodeRuleSet(t, rec)["version"].(float64); v != 1 {
		t.Fatalf("expected version 1, got %v", v)
	}

	// Activating the same draft twice conflicts.
	rec = doJSON(t, router, http.MethodPost, "/rulesets/"+id+"/activate", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 on second activation, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/rulesets/active?branch_id=branch-1&entity_type=student", nil)
	getRec := httptest.NewRecorder()
	router.ServeHTTP(getRec, req)
	if getRec.Code != http.StatusOK {
		t.Fatalf("expected 200 fetching active, got %d", getRec.Code)
	}
}

func TestUpdateLockedRuleSetConflicts(t *testing.T) {
	router := newRuleSetRouter("registrar_head")

	rec := doJSON(t, router, http.MethodPost, "/rulesets", createPayload())
	id := decodeRuleSet(t, rec)["id"].(string)
	doJSON(t, router, http.MethodPost, "/rulesets/"+id+"/activate", nil)

	rec = doJSON(t, router, http.MethodPost, "/rulesets/"+id+"/lock", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 locking, got %d: %s", rec.Code, rec.Body.String())
	}
	if hash := decodeRuleSet(t, rec)["snapshot_hash"].(string); hash == "" {
		t.Fatalf("expected snapshot hash on locked ruleset")
	}

	payload := map[string]any{"rules": []map[string]any{}, "governance": map[string]any{}}
	rec = doJSON(t, router, http.MethodPut, "/rulesets/"+id, payload)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 updating locked ruleset, got %d", rec.Code)
	}
}

func TestLockRequiresRole(t *testing.T) {
	router := newRuleSetRouter("clerk")

	rec := doJSON(t, router, http.MethodPost, "/rulesets", createPayload())
	id := decodeRuleSet(t, rec)["id"].(string)
	doJSON(t, router, http.MethodPost, "/rulesets/"+id+"/activate", nil)

	rec = doJSON(t, router, http.MethodPost, "/rulesets/"+id+"/lock", nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 locking without role, got %d", rec.Code)
	}
}

func TestGetActiveMissingReturns404(t *testing.T) {
	router := newRuleSetRouter()

	req := httptest.NewRequest(http.MethodGet, "/rulesets/active?branch_id=nowhere&entity_type=student", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestGetVersionAfterSupersede(t *testing.T) {
	router := newRuleSetRouter()

	rec := doJSON(t, router, http.MethodPost, "/rulesets", createPayload())
	first := decodeRuleSet(t, rec)["id"].(string)
	doJSON(t, router, http.MethodPost, "/rulesets/"+first+"/activate", nil)

	rec = doJSON(t, router, http.MethodPost, "/rulesets", createPayload())
	second := decodeRuleSet(t, rec)["id"].(string)
	doJSON(t, router, http.MethodPost, "/rulesets/"+second+"/activate", nil)

	req := httptest.NewRequest(http.MethodGet, "/rulesets/versions?branch_id=branch-1&entity_type=student&version=1", nil)
	getRec := httptest.NewRecorder()
	router.ServeHTTP(getRec, req)
	if getRec.Code != http.StatusOK {
		t.Fatalf("expected 200 fetching version 1, got %d", getRec.Code)
	}
	resp := decodeRuleSet(t, getRec)
	if resp["status"] != "locked" {
		t.Fatalf("expected superseded version to be locked, got %v", resp["status"])
	}
	if resp["locked_by"] != "system:superseded" {
		t.Fatalf("expected system supersede marker, got %v", resp["locked_by"])
	}
}
