package core

import "context"

type contextKey string

const ctxKeyActor contextKey = "actor"

// ContextWithActor records who is making the request. Imports store it as
// importadoPor.
func ContextWithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, ctxKeyActor, actor)
}

// ActorFromContext returns the authenticated actor, or "" when unset.
func ActorFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyActor).(string); ok {
		return v
	}
	return ""
}
