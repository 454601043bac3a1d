package domain

import "context"

// Actor is the authenticated identity every core operation runs as. It is
// threaded through context explicitly; the core never reads ambient
// per-request globals.
type Actor struct {
	UserID uint
	ShopID uint
	Role   string
}

type actorContextKey struct{}

func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	return actor, ok
}
