// Package auth resolves the caller identity from a bearer token.
package auth

import "context"

// Identity is the authenticated caller.
type Identity struct {
	// Subject is the user id carried in the token's sub claim.
	Subject int64
}

// Resolver turns a raw token into an Identity.
type Resolver interface {
	Resolve(ctx context.Context, token string) (Identity, error)
}

type identityKey struct{}

// WithIdentity stores id in ctx. Only the transport layer uses this; domain
// operations take the identity as an explicit argument.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext returns the identity stored by WithIdentity.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}
