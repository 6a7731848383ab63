package identity

import (
	"context"
	"errors"

	"github.com/northquay/tokend/internal/auth/domain"
)

// ErrNoMatch is the uniform failure for password authentication. An unknown
// username, a wrong password, and a disabled account all produce it, so the
// caller cannot be used as a user-enumeration oracle.
var ErrNoMatch = errors.New("identity: credentials do not match")

// ErrNotFound reports that no user exists for a natural key.
var ErrNotFound = errors.New("identity: user not found")

// Provider is the external identity collaborator the token engine calls
// into. Deployments embedding the engine substitute their own (LDAP, SSO,
// remote user service); StoreProvider is the store-backed default.
type Provider interface {
	// Authenticate checks a username/password pair and returns the user
	// on success, or ErrNoMatch.
	Authenticate(ctx context.Context, username, password string) (domain.User, error)

	// GetByNaturalKey looks a user up by username, returning ErrNotFound
	// when absent. Disabled users are returned as-is; the caller decides
	// how to treat them.
	GetByNaturalKey(ctx context.Context, username string) (domain.User, error)
}
