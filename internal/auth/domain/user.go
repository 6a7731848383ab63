package domain

import "time"

// User is the identity the engine mints tokens for. Username is the natural
// key and becomes the token's sub claim.
type User struct {
	ID           string
	Username     string
	PasswordHash string // argon2id encoded
	Active       bool
	Staff        bool
	Permissions  []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
