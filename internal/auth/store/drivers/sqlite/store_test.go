package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/northquay/tokend/internal/auth/domain"
	"github.com/northquay/tokend/internal/auth/store"
	"github.com/northquay/tokend/internal/auth/store/drivers/sqlite"
	"github.com/northquay/tokend/pkg/idx"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	require.NoError(t, st.ApplyMigrations())
	return st
}

func newUser(username string) domain.User {
	return domain.User{
		ID:           idx.New().String(),
		Username:     username,
		PasswordHash: "$argon2id$v=19$m=65536,t=3,p=2$c2FsdA$aGFzaA",
		Active:       true,
		Permissions:  []string{"read", "write"},
	}
}

func newToken(userID string, createdAt time.Time) domain.RefreshToken {
	return domain.RefreshToken{
		ID:        idx.New().String(),
		UserID:    userID,
		TokenHash: "hash-" + idx.New().String(),
		CreatedAt: createdAt,
	}
}

func TestUsersCRUD(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	u := newUser("alice")
	require.NoError(t, st.Users().CreateUser(ctx, u))

	t.Run("get by id", func(t *testing.T) {
		got, err := st.Users().GetUserByID(ctx, u.ID)
		require.NoError(t, err)
		require.Equal(t, u.Username, got.Username)
		require.Equal(t, u.Permissions, got.Permissions)
		require.True(t, got.Active)
	})

	t.Run("get by username", func(t *testing.T) {
		got, err := st.Users().GetUserByUsername(ctx, "alice")
		require.NoError(t, err)
		require.Equal(t, u.ID, got.ID)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := st.Users().GetUserByID(ctx, "missing")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("duplicate username", func(t *testing.T) {
		dup := newUser("alice")
		err := st.Users().CreateUser(ctx, dup)
		require.ErrorIs(t, err, store.ErrAlreadyExists)
	})

	t.Run("update password hash", func(t *testing.T) {
		require.NoError(t, st.Users().UpdatePasswordHash(ctx, u.ID, "newhash"))
		got, err := st.Users().GetUserByID(ctx, u.ID)
		require.NoError(t, err)
		require.Equal(t, "newhash", got.PasswordHash)
	})

	t.Run("set active", func(t *testing.T) {
		require.NoError(t, st.Users().SetUserActive(ctx, u.ID, false))
		got, err := st.Users().GetUserByID(ctx, u.ID)
		require.NoError(t, err)
		require.False(t, got.Active)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, st.Users().DeleteUser(ctx, u.ID))
		_, err := st.Users().GetUserByID(ctx, u.ID)
		require.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestRefreshTokens(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	now := time.Now().UTC().Truncate(time.Second)

	u := newUser("alice")
	require.NoError(t, st.Users().CreateUser(ctx, u))

	rt := newToken(u.ID, now)
	require.NoError(t, st.RefreshTokens().CreateRefreshToken(ctx, rt))

	t.Run("get by hash", func(t *testing.T) {
		got, err := st.RefreshTokens().GetRefreshTokenByHash(ctx, rt.TokenHash)
		require.NoError(t, err)
		require.Equal(t, rt.ID, got.ID)
		require.Equal(t, u.ID, got.UserID)
		require.Nil(t, got.RevokedAt)
	})

	t.Run("unknown hash", func(t *testing.T) {
		_, err := st.RefreshTokens().GetRefreshTokenByHash(ctx, "missing")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("duplicate hash", func(t *testing.T) {
		dup := newToken(u.ID, now)
		dup.TokenHash = rt.TokenHash
		err := st.RefreshTokens().CreateRefreshToken(ctx, dup)
		require.ErrorIs(t, err, store.ErrAlreadyExists)
	})

	t.Run("consume removes the row once", func(t *testing.T) {
		require.NoError(t, st.RefreshTokens().ConsumeRefreshToken(ctx, rt.TokenHash))

		err := st.RefreshTokens().ConsumeRefreshToken(ctx, rt.TokenHash)
		require.ErrorIs(t, err, store.ErrNotFound)

		_, err = st.RefreshTokens().GetRefreshTokenByHash(ctx, rt.TokenHash)
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("consume skips revoked rows", func(t *testing.T) {
		revoked := newToken(u.ID, now)
		require.NoError(t, st.RefreshTokens().CreateRefreshToken(ctx, revoked))
		require.NoError(t, st.RefreshTokens().RevokeRefreshToken(ctx, revoked.TokenHash, now))

		err := st.RefreshTokens().ConsumeRefreshToken(ctx, revoked.TokenHash)
		require.ErrorIs(t, err, store.ErrNotFound)

		// The revoked row itself survives as a tombstone.
		got, err := st.RefreshTokens().GetRefreshTokenByHash(ctx, revoked.TokenHash)
		require.NoError(t, err)
		require.True(t, got.Revoked())
	})
}

func TestRevokeRefreshToken(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	now := time.Now().UTC().Truncate(time.Second)

	u := newUser("alice")
	require.NoError(t, st.Users().CreateUser(ctx, u))

	rt := newToken(u.ID, now)
	require.NoError(t, st.RefreshTokens().CreateRefreshToken(ctx, rt))

	require.NoError(t, st.RefreshTokens().RevokeRefreshToken(ctx, rt.TokenHash, now))

	got, err := st.RefreshTokens().GetRefreshTokenByHash(ctx, rt.TokenHash)
	require.NoError(t, err)
	require.True(t, got.Revoked())
	require.Equal(t, now.Unix(), got.RevokedAt.Unix())

	// A second revocation does not move the timestamp.
	later := now.Add(time.Hour)
	require.NoError(t, st.RefreshTokens().RevokeRefreshToken(ctx, rt.TokenHash, later))

	got, err = st.RefreshTokens().GetRefreshTokenByHash(ctx, rt.TokenHash)
	require.NoError(t, err)
	require.Equal(t, now.Unix(), got.RevokedAt.Unix())
}

func TestRevokeAllForUser(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	now := time.Now().UTC().Truncate(time.Second)

	alice := newUser("alice")
	bob := newUser("bob")
	require.NoError(t, st.Users().CreateUser(ctx, alice))
	require.NoError(t, st.Users().CreateUser(ctx, bob))

	a1 := newToken(alice.ID, now)
	a2 := newToken(alice.ID, now)
	b1 := newToken(bob.ID, now)
	for _, rt := range []domain.RefreshToken{a1, a2, b1} {
		require.NoError(t, st.RefreshTokens().CreateRefreshToken(ctx, rt))
	}

	require.NoError(t, st.RefreshTokens().RevokeAllForUser(ctx, alice.ID, now))

	for _, hash := range []string{a1.TokenHash, a2.TokenHash} {
		got, err := st.RefreshTokens().GetRefreshTokenByHash(ctx, hash)
		require.NoError(t, err)
		require.True(t, got.Revoked())
	}

	got, err := st.RefreshTokens().GetRefreshTokenByHash(ctx, b1.TokenHash)
	require.NoError(t, err)
	require.False(t, got.Revoked())
}

func TestDeleteRefreshTokensBefore(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	now := time.Now().UTC().Truncate(time.Second)

	u := newUser("alice")
	require.NoError(t, st.Users().CreateUser(ctx, u))

	stale := newToken(u.ID, now.Add(-48*time.Hour))
	fresh := newToken(u.ID, now)
	require.NoError(t, st.RefreshTokens().CreateRefreshToken(ctx, stale))
	require.NoError(t, st.RefreshTokens().CreateRefreshToken(ctx, fresh))

	deleted, err := st.RefreshTokens().DeleteRefreshTokensBefore(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	require.Equal(t, int64(1), deleted)

	_, err = st.RefreshTokens().GetRefreshTokenByHash(ctx, stale.TokenHash)
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = st.RefreshTokens().GetRefreshTokenByHash(ctx, fresh.TokenHash)
	require.NoError(t, err)
}

func TestWithTx(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	t.Run("commit persists", func(t *testing.T) {
		u := newUser("alice")
		err := st.WithTx(ctx, func(tx store.Tx) error {
			return tx.Users().CreateUser(ctx, u)
		})
		require.NoError(t, err)

		_, err = st.Users().GetUserByID(ctx, u.ID)
		require.NoError(t, err)
	})

	t.Run("error rolls back", func(t *testing.T) {
		u := newUser("bob")
		err := st.WithTx(ctx, func(tx store.Tx) error {
			if err := tx.Users().CreateUser(ctx, u); err != nil {
				return err
			}
			return context.Canceled
		})
		require.ErrorIs(t, err, context.Canceled)

		_, err = st.Users().GetUserByID(ctx, u.ID)
		require.ErrorIs(t, err, store.ErrNotFound)
	})
}
