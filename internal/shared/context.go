// Package shared holds cross-domain helpers: the resolved caller identity
// and the audit trail.
package shared

import "context"

// Identity is the already-resolved caller context. Authentication happens
// upstream; this core only scopes data by it.
type Identity struct {
	UserID    int64
	CompanyID int64
}

type identityContextKey struct{}

// ContextWithIdentity stores the caller identity in context.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext extracts the caller identity from context.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(Identity)
	return id, ok
}
