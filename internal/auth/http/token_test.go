package http_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/northquay/tokend/internal/auth/domain"
	httpapi "github.com/northquay/tokend/internal/auth/http"
	"github.com/northquay/tokend/internal/auth/identity"
	"github.com/northquay/tokend/internal/auth/service"
	"github.com/northquay/tokend/internal/auth/store"
	"github.com/northquay/tokend/internal/auth/store/drivers/sqlite"
	"github.com/northquay/tokend/pkg/authsdk"
	"github.com/northquay/tokend/pkg/cryptox"
	"github.com/northquay/tokend/pkg/idx"
	"github.com/northquay/tokend/pkg/jwtx"

	"github.com/stretchr/testify/require"
)

const (
	testPassword = "correct horse battery staple"
	testIssuer   = "tokend-test"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type testEnv struct {
	store   store.Store
	service *service.TokenService
	server  *httptest.Server
	client  *authsdk.Client
}

func newTestEnv(t *testing.T, mode service.RefreshMode) *testEnv {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	hash, err := cryptox.HashPassword(testPassword)
	require.NoError(t, err)
	require.NoError(t, st.Users().CreateUser(context.Background(), domain.User{
		ID:           idx.New().String(),
		Username:     "alice",
		PasswordHash: hash,
		Active:       true,
	}))

	signer, err := jwtx.NewSignerHS256(testSecret)
	require.NoError(t, err)

	svc := &service.TokenService{
		Signer: signer,
		Verifier: jwtx.NewVerifierHS256(testSecret, jwtx.VerifyOptions{
			Issuer:           testIssuer,
			VerifyExpiration: true,
		}),
		RefreshVerifier: jwtx.NewVerifierHS256(testSecret, jwtx.VerifyOptions{
			Issuer:           testIssuer,
			VerifyExpiration: false,
		}),
		Identity: identity.NewStoreProvider(st),
		Store:    st,

		Issuer:       testIssuer,
		AccessTTL:    5 * time.Minute,
		RefreshTTL:   7 * 24 * time.Hour,
		AllowRefresh: true,
		Mode:         mode,
	}

	router := httpapi.NewRouter(svc, st, "Authorization", "JWT", "test", slog.New(slog.DiscardHandler))
	router.ApplyRoutes()

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &testEnv{
		store:   st,
		service: svc,
		server:  server,
		client:  authsdk.NewClient(server.URL),
	}
}

func TestTokenLifecycleStored(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, service.RefreshModeStored)

	auth, err := env.client.TokenAuth(ctx, "alice", testPassword)
	require.NoError(t, err)
	require.NotEmpty(t, auth.Token)
	require.NotEmpty(t, auth.RefreshToken)
	require.Equal(t, "alice", auth.Payload.Subject)
	require.Equal(t, int((5 * time.Minute).Seconds()), auth.ExpiresIn)

	verified, err := env.client.VerifyToken(ctx, auth.Token)
	require.NoError(t, err)
	require.Equal(t, "alice", verified.Payload.Subject)

	rotated, err := env.client.RefreshToken(ctx, auth.RefreshToken)
	require.NoError(t, err)
	require.NotEmpty(t, rotated.RefreshToken)
	require.NotEqual(t, auth.RefreshToken, rotated.RefreshToken)

	// Replaying the consumed token fails like an unknown token.
	_, err = env.client.RefreshToken(ctx, auth.RefreshToken)
	requireAPIError(t, err, http.StatusUnauthorized, authsdk.ErrorCodeInvalidRefresh)

	// Revoke the live one, then a refresh reports revoked.
	revoked, err := env.client.RevokeToken(ctx, rotated.RefreshToken)
	require.NoError(t, err)
	require.NotZero(t, revoked.Revoked)

	_, err = env.client.RefreshToken(ctx, rotated.RefreshToken)
	requireAPIError(t, err, http.StatusUnauthorized, authsdk.ErrorCodeRevokedRefresh)
}

func TestTokenLifecycleSliding(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, service.RefreshModeSliding)

	auth, err := env.client.TokenAuth(ctx, "alice", testPassword)
	require.NoError(t, err)
	require.Empty(t, auth.RefreshToken, "sliding mode issues no opaque token")
	require.NotZero(t, auth.Payload.OrigIat)

	// In sliding mode the access token itself is the refresh credential.
	// Advance the service clock so the refreshed token's second-granularity
	// iat/exp differ from the original's.
	env.service.Now = func() time.Time { return time.Now().UTC().Add(time.Second) }
	fresh, err := env.client.RefreshToken(ctx, auth.Token)
	require.NoError(t, err)
	require.NotEqual(t, auth.Token, fresh.Token)
	require.Equal(t, auth.Payload.OrigIat, fresh.Payload.OrigIat)
}

func TestTokenAuthFailures(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, service.RefreshModeStored)

	t.Run("wrong password", func(t *testing.T) {
		_, err := env.client.TokenAuth(ctx, "alice", "nope")
		requireAPIError(t, err, http.StatusUnauthorized, authsdk.ErrorCodeInvalidCredentials)
	})

	t.Run("unknown user reads the same", func(t *testing.T) {
		_, err := env.client.TokenAuth(ctx, "nobody", testPassword)
		requireAPIError(t, err, http.StatusUnauthorized, authsdk.ErrorCodeInvalidCredentials)
	})

	t.Run("missing fields", func(t *testing.T) {
		_, err := env.client.TokenAuth(ctx, "", "")
		requireAPIError(t, err, http.StatusBadRequest, authsdk.ErrorCodeInvalidRequest)
	})
}

func TestVerifyFailures(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, service.RefreshModeStored)

	t.Run("missing token", func(t *testing.T) {
		_, err := env.client.VerifyToken(ctx, "")
		requireAPIError(t, err, http.StatusBadRequest, authsdk.ErrorCodeInvalidRequest)
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := env.client.VerifyToken(ctx, "not.a.token")
		requireAPIError(t, err, http.StatusUnauthorized, authsdk.ErrorCodeInvalidToken)
	})

	t.Run("expired token", func(t *testing.T) {
		past := time.Now().UTC().Add(-1 * time.Hour)
		env.service.Now = func() time.Time { return past }
		pair, _, err := env.service.Login(ctx, "alice", testPassword)
		require.NoError(t, err)
		env.service.Now = nil

		_, err = env.client.VerifyToken(ctx, pair.Token)
		requireAPIError(t, err, http.StatusUnauthorized, authsdk.ErrorCodeExpiredToken)
	})
}

func TestVerifyIgnoresAccountState(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, service.RefreshModeStored)

	auth, err := env.client.TokenAuth(ctx, "alice", testPassword)
	require.NoError(t, err)

	alice, err := env.store.Users().GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	require.NoError(t, env.store.Users().DeleteUser(ctx, alice.ID))

	// Verification is a pure claims check; a deleted account does not
	// invalidate an otherwise sound token.
	verified, err := env.client.VerifyToken(ctx, auth.Token)
	require.NoError(t, err)
	require.Equal(t, "alice", verified.Payload.Subject)
}

func TestUserInfo(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, service.RefreshModeStored)

	auth, err := env.client.TokenAuth(ctx, "alice", testPassword)
	require.NoError(t, err)

	t.Run("with token", func(t *testing.T) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, env.server.URL+"/v1/userinfo", nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", "JWT "+auth.Token)

		resp, err := env.server.Client().Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusOK, resp.StatusCode)

		var info authsdk.UserInfoResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))
		require.Equal(t, "alice", info.Username)
	})

	t.Run("without token", func(t *testing.T) {
		resp, err := env.server.Client().Get(env.server.URL + "/v1/userinfo")
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("with invalid token", func(t *testing.T) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, env.server.URL+"/v1/userinfo", nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", "JWT bogus")

		resp, err := env.server.Client().Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t, service.RefreshModeStored)

	for _, path := range []string{"/livez", "/readyz"} {
		resp, err := env.server.Client().Get(env.server.URL + path)
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusOK, resp.StatusCode, path)

		var health authsdk.HealthResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
		require.Equal(t, "ok", health.Status)
	}
}

func requireAPIError(t *testing.T, err error, status int, code string) {
	t.Helper()

	var apiErr *authsdk.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, status, apiErr.StatusCode)
	require.Equal(t, code, apiErr.Code)
}
