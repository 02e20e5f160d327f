// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values.
//
// Middleware sets values; services and handlers read them. Keeping this
// package free of net/http lets services import only what they need.
//
// Usage in services (read values):
//
//	actorID := requestcontext.ActorID(ctx)
//	requestID := requestcontext.RequestID(ctx)
//
// Usage in middleware (set values):
//
//	ctx = requestcontext.WithActorID(ctx, actorID)
//	ctx = requestcontext.WithRequestID(ctx, requestID)
package requestcontext

import (
	"context"

	id "cmdgate/pkg/domain"
)

// Context key types (unexported for encapsulation).
type (
	actorIDKey   struct{}
	actorRoleKey struct{}
	requestIDKey struct{}
)

// WithActorID stores the authenticated actor ID in the context.
func WithActorID(ctx context.Context, actorID id.ActorID) context.Context {
	return context.WithValue(ctx, actorIDKey{}, actorID)
}

// ActorID retrieves the authenticated actor ID, or the zero ID when absent.
func ActorID(ctx context.Context) id.ActorID {
	v, _ := ctx.Value(actorIDKey{}).(id.ActorID)
	return v
}

// WithActorRole stores the authenticated actor's role in the context.
func WithActorRole(ctx context.Context, role id.ActorRole) context.Context {
	return context.WithValue(ctx, actorRoleKey{}, role)
}

// ActorRole retrieves the authenticated actor's role, or "" when absent.
func ActorRole(ctx context.Context) id.ActorRole {
	v, _ := ctx.Value(actorRoleKey{}).(id.ActorRole)
	return v
}

// WithRequestID stores the correlation ID assigned by middleware.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestID retrieves the correlation ID, or "" when absent.
func RequestID(ctx context.Context) string {
	v, _ := ctx.Value(requestIDKey{}).(string)
	return v
}
