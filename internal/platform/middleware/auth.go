package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"cmdgate/internal/admission/models"
	"cmdgate/internal/platform/apikey"
	id "cmdgate/pkg/domain"
	dErrors "cmdgate/pkg/domain-errors"
	"cmdgate/pkg/platform/httputil"
	"cmdgate/pkg/requestcontext"
)

// ActorResolver resolves an API key digest to an actor. Satisfied by the
// actor store.
type ActorResolver interface {
	GetByAPIKeyDigest(ctx context.Context, digest string) (*models.Actor, error)
}

// RequireActor authenticates the X-API-KEY header and stores the resolved
// actor identity in the request context. Identity resolution happens here,
// before the admission engine is ever invoked.
func RequireActor(resolver ActorResolver, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			key := r.Header.Get("X-API-KEY")
			if key == "" {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing API key"))
				return
			}

			actor, err := resolver.GetByAPIKeyDigest(ctx, apikey.Digest(key))
			if err != nil {
				logger.ErrorContext(ctx, "actor lookup failed",
					"request_id", requestcontext.RequestID(ctx),
					"error", err,
				)
				httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "actor lookup failed"))
				return
			}
			if actor == nil {
				logger.WarnContext(ctx, "unauthorized access - unknown API key",
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid API key"))
				return
			}

			ctx = requestcontext.WithActorID(ctx, actor.ID)
			ctx = requestcontext.WithActorRole(ctx, actor.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin rejects requests whose authenticated actor is not an admin.
// Must be mounted after RequireActor.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requestcontext.ActorRole(r.Context()) != id.RoleAdmin {
			httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "admin access required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
