package authsdk

import (
	"github.com/northquay/tokend/pkg/jwtx"
)

// TokenResponse is returned by POST /v1/token and POST /v1/token/refresh.
type TokenResponse struct {
	// Token is the signed JWT access token.
	Token string `json:"token"`

	// RefreshToken is the opaque single-use refresh token. Present only
	// when the service runs in stored-refresh mode.
	RefreshToken string `json:"refresh_token,omitempty"`

	// Payload echoes the decoded claims of the issued token.
	Payload jwtx.Claims `json:"payload"`

	// ExpiresIn is the access token lifetime in seconds.
	ExpiresIn int `json:"expires_in"`
}

// VerifyResponse is returned by POST /v1/token/verify.
type VerifyResponse struct {
	Payload jwtx.Claims `json:"payload"`
}

// RevokeResponse is returned by POST /v1/token/revoke.
type RevokeResponse struct {
	// Revoked is the revocation timestamp in epoch seconds.
	Revoked int64 `json:"revoked"`
}

// UserInfoResponse is returned by GET /v1/userinfo.
type UserInfoResponse struct {
	Username    string   `json:"username"`
	Staff       bool     `json:"staff"`
	Permissions []string `json:"permissions,omitempty"`
}

// HealthResponse is returned by the /livez and /readyz probes.
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime"`
	Version string        `json:"version"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks reports per-dependency readiness.
type HealthChecks struct {
	Database string `json:"database"`
}

// ErrorResponse is the JSON error body shared by all endpoints.
type ErrorResponse struct {
	// Error is the machine-readable error code (e.g. "invalid_credentials").
	Error string `json:"error"`

	// ErrorDescription is a human-readable description of the error.
	ErrorDescription string `json:"error_description"`
}
