package access

import "context"

type claimContextKey struct{}

// ContextWithClaim stores the verified claim in context.
func ContextWithClaim(ctx context.Context, claim SessionClaim) context.Context {
	return context.WithValue(ctx, claimContextKey{}, claim)
}

// ClaimFromContext extracts the verified claim from context.
func ClaimFromContext(ctx context.Context) (SessionClaim, bool) {
	claim, ok := ctx.Value(claimContextKey{}).(SessionClaim)
	return claim, ok
}
