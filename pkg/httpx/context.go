package httpx

import (
	"context"
	"net/http"

	"github.com/northquay/tokend/pkg/jwtx"
)

// Middleware is the standard http.Handler wrapper shape used across the service.
type Middleware func(http.Handler) http.Handler

// Identity is the transport-neutral view of an authenticated caller that the
// guard predicates operate on. The service layer maps its own user type into
// this before it reaches a handler.
type Identity struct {
	Username    string
	Active      bool
	Staff       bool
	Permissions []string
}

// HasAllPermissions reports whether the identity holds every listed permission.
func (id Identity) HasAllPermissions(perms ...string) bool {
	have := make(map[string]struct{}, len(id.Permissions))
	for _, p := range id.Permissions {
		have[p] = struct{}{}
	}
	for _, p := range perms {
		if _, ok := have[p]; !ok {
			return false
		}
	}
	return true
}

type ctxKey string

const (
	CtxKeyIdentity ctxKey = "identity"
	CtxKeyClaims   ctxKey = "claims"
)

// IdentityFromContext returns the authenticated identity, if any.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(CtxKeyIdentity).(Identity)
	return id, ok
}

// ClaimsFromContext returns the verified token claims, if any.
func ClaimsFromContext(ctx context.Context) (jwtx.Claims, bool) {
	c, ok := ctx.Value(CtxKeyClaims).(jwtx.Claims)
	return c, ok
}

// ContextWithIdentity injects an authenticated identity and its claims. The
// authn middleware uses this; tests may call it directly.
func ContextWithIdentity(ctx context.Context, id Identity, claims jwtx.Claims) context.Context {
	ctx = context.WithValue(ctx, CtxKeyIdentity, id)
	return context.WithValue(ctx, CtxKeyClaims, claims)
}
