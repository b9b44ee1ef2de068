// Package identity carries the pre-authenticated caller through request
// context. The gateway authenticates sessions and forwards the resolved
// user ID and role; this service trusts those values (optionally after
// HMAC verification, see pkg/middleware) and performs no credential
// checks of its own.
package identity

import (
	"context"

	"campusbook/pkg/model"
)

type Identity struct {
	UserID string
	Role   model.Role
}

type contextKey struct{}

func NewContext(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok
}
