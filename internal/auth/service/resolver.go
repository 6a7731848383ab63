package service

import (
	"context"

	"github.com/northquay/tokend/pkg/httpx"
	"github.com/northquay/tokend/pkg/jwtx"
)

// ResolveIdentity adapts ResolveUser to the transport-neutral identity the
// guard predicates consume. Together with VerifyToken it makes the service
// an httpx.Authenticator.
func (s *TokenService) ResolveIdentity(ctx context.Context, claims jwtx.Claims) (httpx.Identity, error) {
	user, err := s.ResolveUser(ctx, claims)
	if err != nil {
		return httpx.Identity{}, err
	}

	return httpx.Identity{
		Username:    user.Username,
		Active:      user.Active,
		Staff:       user.Staff,
		Permissions: user.Permissions,
	}, nil
}
