package auth

import (
	"context"

	"foodorder-backend/internal/models"
)

// Actor is the authenticated user behind a request.
type Actor struct {
	UserID uint
	Name   string
	Role   models.UserRole
}

type actorKey struct{}

func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// ActorFrom returns the zero Actor for unauthenticated contexts.
func ActorFrom(ctx context.Context) Actor {
	if ctx == nil {
		return Actor{}
	}
	a, _ := ctx.Value(actorKey{}).(Actor)
	return a
}
