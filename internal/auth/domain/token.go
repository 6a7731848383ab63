package domain

import "time"

// TokenPair is what the token operations return: the signed access token
// and, in stored-refresh mode, the opaque refresh token.
type TokenPair struct {
	Token        string
	RefreshToken string
	ExpiresIn    time.Duration
}

// RefreshToken models the stored refresh token record.
//
// Exactly one record per rotation chain is live at a time. Rotation deletes
// the row and inserts a successor in the same transaction; revocation sets
// RevokedAt and is terminal.
type RefreshToken struct {
	ID        string
	UserID    string
	TokenHash string // deterministic fingerprint (base64url SHA-256)
	CreatedAt time.Time
	RevokedAt *time.Time
}

// Revoked reports whether the record has been explicitly revoked.
func (t RefreshToken) Revoked() bool { return t.RevokedAt != nil }
