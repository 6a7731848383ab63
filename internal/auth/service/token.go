package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/northquay/tokend/internal/auth/domain"
	"github.com/northquay/tokend/internal/auth/identity"
	"github.com/northquay/tokend/internal/auth/store"
	"github.com/northquay/tokend/pkg/cryptox"
	"github.com/northquay/tokend/pkg/idx"
	"github.com/northquay/tokend/pkg/jwtx"
)

// RefreshMode selects how refreshToken behaves. Chosen once per deployment,
// never mixed per-request.
type RefreshMode string

const (
	// RefreshModeSliding keeps no server-side state: the access token
	// itself is the refresh credential, bounded by orig_iat.
	RefreshModeSliding RefreshMode = "sliding"

	// RefreshModeStored issues opaque single-use refresh tokens backed by
	// the store and rotated on every use.
	RefreshModeStored RefreshMode = "stored"
)

// issueAttempts bounds retries when a freshly generated refresh token
// collides with a live one. With 256-bit tokens a single retry is already
// overkill.
const issueAttempts = 3

// PayloadFunc builds the claims for a user. origIat of zero omits the claim.
type PayloadFunc func(user domain.User, origIat int64, now time.Time) jwtx.Claims

// UsernameFunc extracts the natural key from verified claims.
type UsernameFunc func(claims jwtx.Claims) string

// RefreshExpiredFunc decides whether a refresh credential issued at the
// given time is past its window.
type RefreshExpiredFunc func(issuedAt, now time.Time) bool

// TokenService is the token lifecycle engine: it mints access tokens,
// verifies them, and drives the refresh rotation state machine.
//
// The strategy fields (BuildPayload, UsernameFromPayload, RefreshExpired,
// Now) may be left nil to get the default behaviour.
type TokenService struct {
	Signer   jwtx.Signer
	Verifier jwtx.Verifier

	// RefreshVerifier checks tokens presented for a sliding-window
	// refresh. It skips the exp check: within the window an expired
	// access token is still a valid refresh credential. Falls back to
	// Verifier when nil.
	RefreshVerifier jwtx.Verifier

	Identity identity.Provider

	// Store backs stored-mode refresh tokens. May be nil in sliding mode.
	Store store.Store

	Issuer       string
	Audience     []string
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
	AllowRefresh bool
	Mode         RefreshMode

	// RefreshTokenLength is the opaque token entropy in bytes.
	RefreshTokenLength int

	BuildPayload        PayloadFunc
	UsernameFromPayload UsernameFunc
	RefreshExpired      RefreshExpiredFunc
	Now                 func() time.Time
}

// Login authenticates a username/password pair and mints a fresh token
// pair. The orig_iat claim is stamped with the login instant; every
// sliding-window refresh derived from this login carries it unchanged.
func (s *TokenService) Login(ctx context.Context, username, password string) (*domain.TokenPair, jwtx.Claims, error) {
	user, err := s.Authenticate(ctx, username, password)
	if err != nil {
		return nil, jwtx.Claims{}, err
	}

	now := s.now()

	var origIat int64
	if s.AllowRefresh {
		origIat = now.Unix()
	}

	token, claims, err := s.mint(user, origIat, now)
	if err != nil {
		return nil, jwtx.Claims{}, err
	}

	pair := &domain.TokenPair{Token: token, ExpiresIn: s.AccessTTL}

	if s.Mode == RefreshModeStored && s.AllowRefresh {
		opaque, _, err := s.IssueRefreshToken(ctx, user)
		if err != nil {
			return nil, jwtx.Claims{}, err
		}
		pair.RefreshToken = opaque
	}

	return pair, claims, nil
}

// Authenticate delegates the credential check to the identity provider.
// Unknown user and wrong password are indistinguishable to the caller.
func (s *TokenService) Authenticate(ctx context.Context, username, password string) (domain.User, error) {
	user, err := s.Identity.Authenticate(ctx, username, password)
	if err != nil {
		if errors.Is(err, identity.ErrNoMatch) {
			return domain.User{}, ErrInvalidCredentials
		}
		return domain.User{}, err
	}
	return user, nil
}

// VerifyToken decodes an access token and translates codec failures into
// domain errors. Purely computational; safe to call from any goroutine.
func (s *TokenService) VerifyToken(_ context.Context, token string) (jwtx.Claims, error) {
	if token == "" {
		return jwtx.Claims{}, ErrTokenMissing
	}
	return s.verifyWith(s.Verifier, token)
}

// ResolveUser maps verified claims back to the identity they were minted
// for.
func (s *TokenService) ResolveUser(ctx context.Context, claims jwtx.Claims) (domain.User, error) {
	username := s.username(claims)
	if username == "" {
		return domain.User{}, ErrInvalidPayload
	}

	user, err := s.Identity.GetByNaturalKey(ctx, username)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}

	if !user.Active {
		return domain.User{}, ErrUserDisabled
	}

	return user, nil
}

// Refresh exchanges a still-authorized credential for a fresh access token.
// The input is mode-dependent: the current access token in sliding mode,
// the opaque refresh token in stored mode.
func (s *TokenService) Refresh(ctx context.Context, token string) (*domain.TokenPair, jwtx.Claims, error) {
	if token == "" {
		return nil, jwtx.Claims{}, ErrTokenMissing
	}

	switch s.Mode {
	case RefreshModeStored:
		return s.refreshStored(ctx, token)
	default:
		return s.refreshSliding(ctx, token)
	}
}

// refreshSliding is the stateless re-derivation: no single-use constraint,
// validity bounded only by elapsed time since the original login.
func (s *TokenService) refreshSliding(ctx context.Context, token string) (*domain.TokenPair, jwtx.Claims, error) {
	verifier := s.RefreshVerifier
	if verifier == nil {
		verifier = s.Verifier
	}

	claims, err := s.verifyWith(verifier, token)
	if err != nil {
		return nil, jwtx.Claims{}, err
	}

	if claims.OrigIat == 0 {
		return nil, jwtx.Claims{}, ErrInvalidPayload
	}

	now := s.now()
	if s.refreshExpired(time.Unix(claims.OrigIat, 0), now) {
		return nil, jwtx.Claims{}, ErrRefreshExpired
	}

	user, err := s.ResolveUser(ctx, claims)
	if err != nil {
		return nil, jwtx.Claims{}, err
	}

	// orig_iat carries forward unchanged; only exp moves.
	fresh, freshClaims, err := s.mint(user, claims.OrigIat, now)
	if err != nil {
		return nil, jwtx.Claims{}, err
	}

	return &domain.TokenPair{Token: fresh, ExpiresIn: s.AccessTTL}, freshClaims, nil
}

// refreshStored rotates a store-backed refresh token. Validation, minting,
// consuming the old record and inserting the successor all happen inside
// one transaction: of two concurrent rotations on the same record, exactly
// one wins and the other observes ErrRefreshNotFound.
func (s *TokenService) refreshStored(ctx context.Context, opaque string) (*domain.TokenPair, jwtx.Claims, error) {
	fp := cryptox.FingerprintToken(opaque)
	now := s.now()

	var (
		pair   domain.TokenPair
		claims jwtx.Claims
	)

	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		rec, err := tx.RefreshTokens().GetRefreshTokenByHash(ctx, fp)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrRefreshNotFound
			}
			return err
		}

		if err := s.checkRecord(rec, now); err != nil {
			return err
		}

		user, err := tx.Users().GetUserByID(ctx, rec.UserID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		if !user.Active {
			return ErrUserDisabled
		}

		var origIat int64
		if s.AllowRefresh {
			origIat = now.Unix()
		}
		token, minted, err := s.mint(user, origIat, now)
		if err != nil {
			return err
		}

		// Consuming the old row and creating its successor is the
		// atomic heart of rotation. The rows-affected guard inside
		// ConsumeRefreshToken is what makes the loser of a race fail.
		if err := tx.RefreshTokens().ConsumeRefreshToken(ctx, fp); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrRefreshNotFound
			}
			return err
		}

		successor, _, err := s.createRecord(ctx, tx.RefreshTokens(), user.ID, now)
		if err != nil {
			return err
		}

		pair = domain.TokenPair{Token: token, RefreshToken: successor, ExpiresIn: s.AccessTTL}
		claims = minted
		return nil
	})
	if err != nil {
		return nil, jwtx.Claims{}, err
	}

	return &pair, claims, nil
}

// ValidateRefreshToken checks a stored refresh token without consuming it.
func (s *TokenService) ValidateRefreshToken(ctx context.Context, opaque string) (domain.RefreshToken, error) {
	if s.Store == nil {
		return domain.RefreshToken{}, ErrRefreshNotFound
	}

	rec, err := s.Store.RefreshTokens().GetRefreshTokenByHash(ctx, cryptox.FingerprintToken(opaque))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.RefreshToken{}, ErrRefreshNotFound
		}
		return domain.RefreshToken{}, err
	}

	if err := s.checkRecord(rec, s.now()); err != nil {
		return domain.RefreshToken{}, err
	}

	return rec, nil
}

// Revoke permanently invalidates a stored refresh token and returns the
// revocation timestamp. Revoking twice returns the original timestamp.
func (s *TokenService) Revoke(ctx context.Context, opaque string) (time.Time, error) {
	if s.Store == nil {
		return time.Time{}, ErrRefreshNotFound
	}

	fp := cryptox.FingerprintToken(opaque)

	rec, err := s.Store.RefreshTokens().GetRefreshTokenByHash(ctx, fp)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return time.Time{}, ErrRefreshNotFound
		}
		return time.Time{}, err
	}

	if rec.Revoked() {
		return *rec.RevokedAt, nil
	}

	now := s.now()
	if err := s.Store.RefreshTokens().RevokeRefreshToken(ctx, fp, now); err != nil {
		return time.Time{}, err
	}

	return now, nil
}

// RevokeAllForUser bulk-revokes every live refresh token a user owns.
func (s *TokenService) RevokeAllForUser(ctx context.Context, userID string) error {
	if s.Store == nil {
		return nil
	}
	return s.Store.RefreshTokens().RevokeAllForUser(ctx, userID, s.now())
}

// IssueRefreshToken generates and persists a fresh opaque refresh token for
// a user. Fingerprint collisions are caught by the store's unique
// constraint and retried with new entropy.
func (s *TokenService) IssueRefreshToken(ctx context.Context, user domain.User) (string, domain.RefreshToken, error) {
	return s.createRecord(ctx, s.Store.RefreshTokens(), user.ID, s.now())
}

func (s *TokenService) createRecord(ctx context.Context, repo store.RefreshTokens, userID string, now time.Time) (string, domain.RefreshToken, error) {
	length := s.RefreshTokenLength
	if length <= 0 {
		length = cryptox.TokenSize256
	}

	for attempt := 0; attempt < issueAttempts; attempt++ {
		opaque, err := cryptox.GenerateToken(length)
		if err != nil {
			return "", domain.RefreshToken{}, err
		}

		rec := domain.RefreshToken{
			ID:        idx.New().String(),
			UserID:    userID,
			TokenHash: cryptox.FingerprintToken(opaque),
			CreatedAt: now,
		}

		if err := repo.CreateRefreshToken(ctx, rec); err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				continue
			}
			return "", domain.RefreshToken{}, err
		}

		return opaque, rec, nil
	}

	return "", domain.RefreshToken{}, fmt.Errorf("refresh token generation kept colliding after %d attempts", issueAttempts)
}

// checkRecord applies the shared stored-mode validation order. Revocation
// wins over expiry: a revoked record reports revoked even after its window
// has also closed.
func (s *TokenService) checkRecord(rec domain.RefreshToken, now time.Time) error {
	if rec.Revoked() {
		return ErrRefreshRevoked
	}
	if s.refreshExpired(rec.CreatedAt, now) {
		return ErrRefreshExpired
	}
	return nil
}

func (s *TokenService) mint(user domain.User, origIat int64, now time.Time) (string, jwtx.Claims, error) {
	claims := s.payload(user, origIat, now)

	token, err := s.Signer.Sign(claims)
	if err != nil {
		return "", jwtx.Claims{}, err
	}

	return token, claims, nil
}

func (s *TokenService) verifyWith(verifier jwtx.Verifier, token string) (jwtx.Claims, error) {
	claims, err := verifier.Verify(token)
	if err != nil {
		switch {
		case errors.Is(err, jwtx.ErrExpired):
			return jwtx.Claims{}, ErrTokenExpired
		default:
			return jwtx.Claims{}, ErrTokenInvalid
		}
	}
	return claims, nil
}

func (s *TokenService) payload(user domain.User, origIat int64, now time.Time) jwtx.Claims {
	if s.BuildPayload != nil {
		return s.BuildPayload(user, origIat, now)
	}
	return jwtx.NewClaims(user.Username, s.AccessTTL, s.Issuer, s.Audience, origIat, now)
}

func (s *TokenService) username(claims jwtx.Claims) string {
	if s.UsernameFromPayload != nil {
		return s.UsernameFromPayload(claims)
	}
	return claims.Subject
}

func (s *TokenService) refreshExpired(issuedAt, now time.Time) bool {
	if s.RefreshExpired != nil {
		return s.RefreshExpired(issuedAt, now)
	}
	// orig_iat is carried at epoch-second granularity, so the window is
	// compared in whole seconds too; a refresh at exactly the boundary
	// is still allowed.
	return now.Unix() > issuedAt.Unix()+int64(s.RefreshTTL/time.Second)
}

func (s *TokenService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}
