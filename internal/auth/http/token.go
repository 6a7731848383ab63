package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/northquay/tokend/internal/auth/service"
	"github.com/northquay/tokend/pkg/authsdk"
	"github.com/northquay/tokend/pkg/httpx"
	"github.com/northquay/tokend/pkg/obs"
	"github.com/northquay/tokend/pkg/slogx"
)

// TokenAuthHandler serves POST /v1/token.
// Accepts application/x-www-form-urlencoded with username and password.
type TokenAuthHandler struct {
	TokenService *service.TokenService
}

func (h *TokenAuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	if err := r.ParseForm(); err != nil {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	username := r.Form.Get("username")
	password := r.Form.Get("password")
	if username == "" || password == "" {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	pair, claims, err := h.TokenService.Login(ctx, username, password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			obs.ObserveTokenOp("auth", "invalid_credentials")
			authsdk.ErrInvalidCredentials.WriteError(w)
		default:
			log.Error("token auth failed", "err", err)
			obs.ObserveTokenOp("auth", "error")
			authsdk.ErrServerError.WriteError(w)
		}
		return
	}

	obs.ObserveTokenOp("auth", "ok")

	response := authsdk.TokenResponse{
		Token:        pair.Token,
		RefreshToken: pair.RefreshToken,
		Payload:      claims,
		ExpiresIn:    int(pair.ExpiresIn.Seconds()),
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, response)
}

// TokenVerifyHandler serves POST /v1/token/verify.
type TokenVerifyHandler struct {
	TokenService *service.TokenService
}

func (h *TokenVerifyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	if err := r.ParseForm(); err != nil {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	token := r.Form.Get("token")

	// Verification is purely cryptographic: signature, issuer, audience
	// and expiry. Account state is checked where the token is used.
	claims, err := h.TokenService.VerifyToken(ctx, token)
	if err != nil {
		writeTokenError(w, log, "verify", err)
		return
	}

	obs.ObserveTokenOp("verify", "ok")

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, authsdk.VerifyResponse{Payload: claims})
}

// TokenRefreshHandler serves POST /v1/token/refresh. The token form field
// carries the current access token in sliding mode or the opaque refresh
// token in stored mode.
type TokenRefreshHandler struct {
	TokenService *service.TokenService
}

func (h *TokenRefreshHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	if err := r.ParseForm(); err != nil {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	token := r.Form.Get("token")

	pair, claims, err := h.TokenService.Refresh(ctx, token)
	if err != nil {
		writeTokenError(w, log, "refresh", err)
		return
	}

	obs.ObserveTokenOp("refresh", "ok")

	response := authsdk.TokenResponse{
		Token:        pair.Token,
		RefreshToken: pair.RefreshToken,
		Payload:      claims,
		ExpiresIn:    int(pair.ExpiresIn.Seconds()),
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, response)
}

// TokenRevokeHandler serves POST /v1/token/revoke.
type TokenRevokeHandler struct {
	TokenService *service.TokenService
}

func (h *TokenRevokeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	if err := r.ParseForm(); err != nil {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	refresh := r.Form.Get("refresh_token")
	if refresh == "" {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	at, err := h.TokenService.Revoke(ctx, refresh)
	if err != nil {
		writeTokenError(w, log, "revoke", err)
		return
	}

	obs.ObserveTokenOp("revoke", "ok")

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, authsdk.RevokeResponse{Revoked: at.Unix()})
}

// writeTokenError maps the engine's error vocabulary onto the wire codes.
func writeTokenError(w http.ResponseWriter, log *slog.Logger, op string, err error) {
	switch {
	case errors.Is(err, service.ErrTokenMissing):
		obs.ObserveTokenOp(op, "missing_token")
		authsdk.ErrInvalidRequest.WriteError(w)
	case errors.Is(err, service.ErrTokenExpired):
		obs.ObserveTokenOp(op, "expired_token")
		authsdk.ErrExpiredToken.WriteError(w)
	case errors.Is(err, service.ErrTokenInvalid),
		errors.Is(err, service.ErrInvalidPayload),
		errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrUserDisabled):
		obs.ObserveTokenOp(op, "invalid_token")
		authsdk.ErrInvalidToken.WriteError(w)
	case errors.Is(err, service.ErrRefreshNotFound):
		obs.ObserveTokenOp(op, "unknown_refresh")
		authsdk.ErrInvalidRefresh.WriteError(w)
	case errors.Is(err, service.ErrRefreshExpired):
		obs.ObserveTokenOp(op, "expired_refresh")
		authsdk.ErrExpiredRefresh.WriteError(w)
	case errors.Is(err, service.ErrRefreshRevoked):
		obs.ObserveTokenOp(op, "revoked_refresh")
		authsdk.ErrRevokedRefresh.WriteError(w)
	default:
		log.Error("token operation failed", "op", op, "err", err)
		obs.ObserveTokenOp(op, "error")
		authsdk.ErrServerError.WriteError(w)
	}
}
