// Package httpapi assembles the HTTP surface: middleware stack, route
// groups, and operational endpoints. Business logic stays in the per-module
// handlers.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	audithandler "docgate/internal/audit/handler"
	evalhandler "docgate/internal/evaluation/handler"
	"docgate/internal/platform/metrics"
	rulesethandler "docgate/internal/ruleset/handler"
	"docgate/pkg/platform/httputil"
	"docgate/pkg/platform/middleware/admin"
	"docgate/pkg/platform/middleware/auth"
	"docgate/pkg/platform/middleware/requesttime"
	"docgate/pkg/requestcontext"
)

// HealthChecker reports readiness of a backing dependency.
type HealthChecker func(ctx context.Context) error

// Deps carries everything the router mounts.
type Deps struct {
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
	Validator  auth.JWTValidator
	AdminToken string

	RuleSets   *rulesethandler.Handler
	Evaluation *evalhandler.Handler
	Audit      *audithandler.Handler

	// Checks run on /healthz; a nil map means always healthy.
	Checks map[string]HealthChecker
}

// NewRouter wires the middleware stack and all endpoints.
//
// Authoring and lifecycle mutations sit behind the admin token in addition
// to bearer auth; evaluation, previews, and reads need bearer auth only.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(propagateRequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requesttime.Middleware)
	r.Use(deps.Metrics.Middleware)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", handleHealth(deps.Checks))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(deps.Validator, deps.Logger))

		deps.Evaluation.Register(r)
		deps.Audit.Register(r)
		deps.RuleSets.RegisterReads(r)

		r.Group(func(r chi.Router) {
			r.Use(admin.RequireAdminToken(deps.AdminToken, deps.Logger))
			deps.RuleSets.Register(r)
		})
	})

	return r
}

// propagateRequestID copies chi's request id into the request context keys
// services read from.
func propagateRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if requestID := chimiddleware.GetReqID(ctx); requestID != "" {
			ctx = requestcontext.WithRequestID(ctx, requestID)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func handleHealth(checks map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		body := map[string]string{"status": "ok"}
		for name, check := range checks {
			if err := check(r.Context()); err != nil {
				status = http.StatusServiceUnavailable
				body["status"] = "degraded"
				body[name] = err.Error()
				continue
			}
			body[name] = "ok"
		}
		httputil.WriteJSON(w, status, body)
	}
}
