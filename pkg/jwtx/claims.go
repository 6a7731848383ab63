package jwtx

import (
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Default token TTL constants. These provide sensible defaults but are
// expected to be overridden per-deployment.
const (
	// DefaultAccessTokenTTL is the default lifetime for access tokens.
	DefaultAccessTokenTTL = 5 * time.Minute

	// DefaultRefreshTokenTTL bounds how long a refresh chain can keep
	// producing new access tokens without re-authentication.
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// Claims are the access-token claims. The registered claims carry sub/exp
// and optionally aud/iss; OrigIat is our one custom field.
type Claims struct {
	jwt.RegisteredClaims

	// OrigIat is the epoch-second timestamp of the original login. It is
	// carried forward unchanged across every refresh derived from that
	// login, bounding the total lifetime of the chain. Zero means the
	// token was minted with refresh disallowed.
	OrigIat int64 `json:"orig_iat,omitempty"`
}

// NewClaims builds minimally-correct claims for a subject. origIat of zero
// omits the orig_iat claim entirely.
func NewClaims(
	subject string,
	ttl time.Duration,
	issuer string,
	audience []string,
	origIat int64,
	now time.Time,
) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			Audience:  jwt.ClaimStrings(audience),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		OrigIat: origIat,
	}
}

// ValidateIssuer checks if the issuer matches expected value.
func (c *Claims) ValidateIssuer(expected string) error {
	if expected == "" {
		return nil // nothing to enforce
	}

	if c.Issuer != expected {
		return ErrIssuer
	}

	return nil
}

// ValidateAudience checks if at least one expected audience is present.
func (c *Claims) ValidateAudience(expected []string) error {
	if len(expected) == 0 {
		return nil // nothing to enforce
	}

	for _, want := range expected {
		if slices.Contains(c.Audience, want) {
			return nil
		}
	}

	return ErrAudience
}

// ValidateExpiry ensures the token hasn't expired, allowing a small grace
// period for clock skew between the minting and verifying hosts.
func (c *Claims) ValidateExpiry(leeway time.Duration) error {
	now := time.Now().UTC()

	if c.ExpiresAt != nil && now.After(c.ExpiresAt.Add(leeway)) {
		return ErrExpired
	}

	if c.NotBefore != nil && now.Before(c.NotBefore.Add(-leeway)) {
		return ErrNotYetValid
	}

	return nil
}
