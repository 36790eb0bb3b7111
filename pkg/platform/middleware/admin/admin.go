// Package admin gates ruleset authoring and lifecycle mutations behind a
// shared operations token. It stacks on top of bearer auth: the actor is
// already identified, this proves the caller may change governing rules.
package admin

import (
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net/http"

	"docgate/pkg/requestcontext"
)

// RequireAdminToken rejects requests whose X-Admin-Token header does not
// match the configured token. Comparison is constant-time.
func RequireAdminToken(expectedToken string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := []byte(r.Header.Get("X-Admin-Token"))
			if subtle.ConstantTimeCompare(presented, []byte(expectedToken)) == 1 {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			logger.WarnContext(ctx, "admin token mismatch",
				"request_id", requestcontext.RequestID(ctx),
				"actor_id", requestcontext.ActorID(ctx),
			)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write(fmt.Appendf(nil, `{"error":"%s","error_description":"%s"}`, "unauthorized", "admin token required"))
		})
	}
}
