package authsdk

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/northquay/tokend/pkg/httpx"
)

// Error codes shared by the server handlers and the SDK client.
const (
	ErrorCodeInvalidRequest     = "invalid_request"
	ErrorCodeInvalidCredentials = "invalid_credentials"
	ErrorCodeInvalidToken       = "invalid_token"
	ErrorCodeExpiredToken       = "expired_token"
	ErrorCodeInvalidRefresh     = "invalid_refresh_token"
	ErrorCodeExpiredRefresh     = "expired_refresh_token"
	ErrorCodeRevokedRefresh     = "revoked_refresh_token"
	ErrorCodePermissionDenied   = "permission_denied"
	ErrorCodeServerError        = "server_error"
)

// APIError represents a JSON error response. It implements the error
// interface and is used both by the server (to write HTTP responses) and by
// the SDK client (to surface failures).
type APIError struct {
	// StatusCode is the HTTP status code for this error.
	StatusCode int `json:"-"`

	// Code is the machine-readable error code.
	Code string `json:"error"`

	// Description is a human-readable description of the error.
	Description string `json:"error_description"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// WriteError writes this APIError to an HTTP response writer.
func (e *APIError) WriteError(w http.ResponseWriter) {
	httpx.NoCache(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.StatusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:            e.Code,
		ErrorDescription: e.Description,
	})
}

var (
	// ErrInvalidRequest is returned when the request is missing a required
	// parameter or is otherwise malformed.
	ErrInvalidRequest = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidRequest,
		Description: "the request is malformed or missing required parameters",
	}

	// ErrInvalidCredentials is returned for any failed password
	// authentication. Wrong password and unknown user are deliberately
	// indistinguishable.
	ErrInvalidCredentials = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeInvalidCredentials,
		Description: "please enter valid credentials",
	}

	// ErrInvalidToken is returned for malformed tokens, bad signatures,
	// audience/issuer mismatches, and unresolvable or disabled subjects.
	ErrInvalidToken = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeInvalidToken,
		Description: "the token is invalid",
	}

	// ErrExpiredToken is returned when the access token's exp has passed.
	ErrExpiredToken = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeExpiredToken,
		Description: "the token has expired",
	}

	// ErrInvalidRefresh covers unknown and already-rotated refresh tokens.
	ErrInvalidRefresh = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeInvalidRefresh,
		Description: "the refresh token is unknown",
	}

	// ErrExpiredRefresh is returned when the refresh window has closed.
	ErrExpiredRefresh = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeExpiredRefresh,
		Description: "the refresh token has expired",
	}

	// ErrRevokedRefresh is returned for explicitly revoked refresh tokens.
	ErrRevokedRefresh = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeRevokedRefresh,
		Description: "the refresh token has been revoked",
	}

	// ErrPermissionDenied is returned when an authorization predicate fails.
	ErrPermissionDenied = &APIError{
		StatusCode:  http.StatusForbidden,
		Code:        ErrorCodePermissionDenied,
		Description: "you do not have permission to perform this action",
	}

	// ErrServerError is returned for unexpected internal failures.
	ErrServerError = &APIError{
		StatusCode:  http.StatusInternalServerError,
		Code:        ErrorCodeServerError,
		Description: "internal server error",
	}
)
