package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/northquay/tokend/internal/auth/domain"
	"github.com/northquay/tokend/internal/auth/store"
)

type refreshTokensRepo struct {
	db dbtx
}

func (r *refreshTokensRepo) CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (id, user_id, token_hash, created_at, revoked_at)
		VALUES ($1, $2, $3, $4, NULL)`,
		t.ID, t.UserID, t.TokenHash, t.CreatedAt,
	)
	return mapConflict(err)
}

func (r *refreshTokensRepo) GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshToken, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, token_hash, created_at, revoked_at
		FROM refresh_tokens WHERE token_hash = $1`, hash)

	var (
		t       domain.RefreshToken
		revoked sql.NullTime
	)
	if err := row.Scan(&t.ID, &t.UserID, &t.TokenHash, &t.CreatedAt, &revoked); err != nil {
		return domain.RefreshToken{}, mapNotFound(err)
	}
	if revoked.Valid {
		at := revoked.Time
		t.RevokedAt = &at
	}
	return t, nil
}

func (r *refreshTokensRepo) ConsumeRefreshToken(ctx context.Context, hash string) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM refresh_tokens WHERE token_hash = $1 AND revoked_at IS NULL`, hash)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	// Zero rows means the record was already rotated or revoked by a
	// concurrent caller; this caller lost the race.
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *refreshTokensRepo) RevokeRefreshToken(ctx context.Context, hash string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE refresh_tokens SET revoked_at = $1 WHERE token_hash = $2 AND revoked_at IS NULL`,
		at, hash,
	)
	return err
}

func (r *refreshTokensRepo) RevokeAllForUser(ctx context.Context, userID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE refresh_tokens SET revoked_at = $1 WHERE user_id = $2 AND revoked_at IS NULL`,
		at, userID,
	)
	return err
}

func (r *refreshTokensRepo) DeleteRefreshTokensBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
