package httpx

import (
	"context"
	"net/http"

	"github.com/northquay/tokend/pkg/jwtx"
	"github.com/northquay/tokend/pkg/slogx"
)

// Authenticator is what the authn middleware needs from the token engine:
// verify a bearer token and resolve the identity its claims point at.
type Authenticator interface {
	VerifyToken(ctx context.Context, token string) (jwtx.Claims, error)
	ResolveIdentity(ctx context.Context, claims jwtx.Claims) (Identity, error)
}

// AuthnMiddleware authenticates requests that carry a bearer token in the
// named header. Requests without a credential pass through unauthenticated;
// requests with an invalid one are rejected outright.
func AuthnMiddleware(a Authenticator, headerName, prefix string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			raw, ok := BearerToken(r.Header, headerName, prefix)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := a.VerifyToken(ctx, raw)
			if err != nil {
				log.Warn("jwt verify failed", "err", err)
				writeBearerError(w, "token verification failed")
				return
			}

			id, err := a.ResolveIdentity(ctx, claims)
			if err != nil {
				log.Warn("identity resolution failed", "err", err)
				writeBearerError(w, "unknown or disabled subject")
				return
			}

			ctx = ContextWithIdentity(ctx, id, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RFC 6750-compliant error response for bearer auth.
func writeBearerError(w http.ResponseWriter, desc string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+desc+`"`)
	w.WriteHeader(http.StatusUnauthorized)
}
