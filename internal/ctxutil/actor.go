// Package ctxutil carries request-scoped values (who acted, which request)
// through context. It has no internal dependencies so any package may import it.
package ctxutil

import "context"

type actorKey struct{}

type requestIDKey struct{}

// SystemActor is recorded when no caller identity is present (scheduler, recovery).
const SystemActor = "system"

// WithActorID returns a context carrying the acting principal.
func WithActorID(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, actorKey{}, actorID)
}

// ActorFromContext returns the actor ID, or "" if none was set.
func ActorFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(actorKey{}).(string); ok {
		return v
	}
	return ""
}

// ActorOrSystem returns the actor ID, falling back to SystemActor.
func ActorOrSystem(ctx context.Context) string {
	if actor := ActorFromContext(ctx); actor != "" {
		return actor
	}
	return SystemActor
}

// WithRequestID returns a context carrying an HTTP request id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the request id, or "".
func RequestIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}
