package auth

import (
	"context"
	"errors"
)

var ErrNoIdentity = errors.New("auth: no operator identity in context")

// Identity is the authenticated operator behind a request.
type Identity struct {
	UserID   string
	TenantID string
	Role     string
}

type ctxKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// IdentityFrom returns the identity stored by RequireAccessToken.
func IdentityFrom(ctx context.Context) (Identity, error) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	if !ok || id.UserID == "" {
		return Identity{}, ErrNoIdentity
	}
	return id, nil
}
