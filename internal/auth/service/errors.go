package service

import "errors"

// Domain-level failures of the token lifecycle engine. Transport layers map
// these onto their own error vocabulary; nothing here leaks codec or store
// internals.
var (
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrTokenMissing       = errors.New("token_missing")
	ErrTokenInvalid       = errors.New("token_invalid")
	ErrTokenExpired       = errors.New("token_expired")
	ErrInvalidPayload     = errors.New("invalid_payload")
	ErrUserNotFound       = errors.New("user_not_found")
	ErrUserDisabled       = errors.New("user_disabled")

	// ErrRefreshNotFound covers unknown refresh tokens AND replays of
	// already-rotated ones. Collapsing the two keeps rotation-chain state
	// invisible to an attacker probing with stolen tokens.
	ErrRefreshNotFound = errors.New("refresh_token_not_found")
	ErrRefreshExpired  = errors.New("refresh_token_expired")
	ErrRefreshRevoked  = errors.New("refresh_token_revoked")
)
