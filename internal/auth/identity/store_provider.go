package identity

import (
	"context"
	"errors"

	"github.com/northquay/tokend/internal/auth/domain"
	"github.com/northquay/tokend/internal/auth/store"
	"github.com/northquay/tokend/pkg/cryptox"
)

// StoreProvider authenticates against the service's own users table with
// argon2id password hashes.
type StoreProvider struct {
	Store store.Store
}

func NewStoreProvider(s store.Store) *StoreProvider {
	return &StoreProvider{Store: s}
}

func (p *StoreProvider) Authenticate(ctx context.Context, username, password string) (domain.User, error) {
	u, err := p.Store.Users().GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Burn comparable time so unknown usernames aren't
			// distinguishable by response latency.
			_ = cryptox.VerifyPassword(password, dummyHash)
			return domain.User{}, ErrNoMatch
		}
		return domain.User{}, err
	}

	if err := cryptox.VerifyPassword(password, u.PasswordHash); err != nil {
		if errors.Is(err, cryptox.ErrPasswordMismatch) {
			return domain.User{}, ErrNoMatch
		}
		return domain.User{}, err
	}

	if !u.Active {
		return domain.User{}, ErrNoMatch
	}

	return u, nil
}

func (p *StoreProvider) GetByNaturalKey(ctx context.Context, username string) (domain.User, error) {
	u, err := p.Store.Users().GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrNotFound
		}
		return domain.User{}, err
	}
	return u, nil
}

// dummyHash is a valid argon2id hash of an unguessable throwaway value.
var dummyHash = func() string {
	h, err := cryptox.HashPassword("tokend-dummy-comparison-value")
	if err != nil {
		panic(err)
	}
	return h
}()
