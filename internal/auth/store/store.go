package store

import (
	"context"
	"errors"
	"time"

	"github.com/northquay/tokend/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite,
// postgres) implement this. Sub-repositories keep concerns tidy and
// testable.
type Store interface {
	Users() Users
	RefreshTokens() RefreshTokens

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise committed. Refresh rotation
	// depends on this for its single-winner guarantee.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	// CreateUser inserts a new user (id is provided by the app via ULID).
	CreateUser(ctx context.Context, u domain.User) error

	// GetUserByID returns a user by id.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByUsername looks a user up by its natural key.
	GetUserByUsername(ctx context.Context, username string) (domain.User, error)

	// UpdatePasswordHash sets the password_hash (argon2) and bumps updated_at.
	UpdatePasswordHash(ctx context.Context, userID string, newHash string) error

	// SetUserActive flips the active flag.
	SetUserActive(ctx context.Context, userID string, active bool) error

	// DeleteUser cascades to refresh_tokens (per schema).
	DeleteUser(ctx context.Context, userID string) error
}

type RefreshTokens interface {
	// CreateRefreshToken stores a new refresh token record. A token_hash
	// collision surfaces as ErrAlreadyExists via the unique constraint.
	CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error

	// GetRefreshTokenByHash returns the record by its fingerprint.
	GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshToken, error)

	// ConsumeRefreshToken deletes a non-revoked record by fingerprint.
	// Returns ErrNotFound when no live row was deleted, which is how a
	// losing concurrent rotation observes that it lost.
	ConsumeRefreshToken(ctx context.Context, hash string) error

	// RevokeRefreshToken sets revoked_at on a not-yet-revoked record.
	// Revoking an already-revoked record is a no-op.
	RevokeRefreshToken(ctx context.Context, hash string, at time.Time) error

	// RevokeAllForUser bulk-revokes every live token a user owns
	// (e.g. after a password reset).
	RevokeAllForUser(ctx context.Context, userID string, at time.Time) error

	// DeleteRefreshTokensBefore removes records created before the cutoff.
	// Housekeeping only; validity is enforced at validation time.
	DeleteRefreshTokensBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
