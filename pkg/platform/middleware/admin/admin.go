// Package admin guards control-plane administration routes with a shared token.
package admin

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"

	dErrors "tenantplane/pkg/domain-errors"
	"tenantplane/pkg/platform/httputil"
	"tenantplane/pkg/requestcontext"
)

const (
	HeaderToken   = "X-Admin-Token"
	HeaderActorID = "X-Admin-Actor-ID"
)

type actorKey struct{}

// ActorID returns the admin actor recorded for audit attribution, or "".
func ActorID(ctx context.Context) string {
	v, _ := ctx.Value(actorKey{}).(string)
	return v
}

// RequireAdminToken rejects requests whose X-Admin-Token does not match
// expectedToken. An empty expectedToken disables the admin surface entirely.
func RequireAdminToken(expectedToken string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token := r.Header.Get(HeaderToken)
			if expectedToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) != 1 {
				logger.WarnContext(ctx, "admin token mismatch",
					"request_id", requestcontext.RequestID(ctx),
					"path", r.URL.Path,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "admin token required"))
				return
			}

			if actor := r.Header.Get(HeaderActorID); actor != "" {
				ctx = context.WithValue(ctx, actorKey{}, actor)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
