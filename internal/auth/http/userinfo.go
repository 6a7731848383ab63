package http

import (
	"net/http"

	"github.com/northquay/tokend/pkg/authsdk"
	"github.com/northquay/tokend/pkg/httpx"
)

// UserInfoHandler serves GET /v1/userinfo. It relies on the authn
// middleware having resolved the bearer token into an identity.
type UserInfoHandler struct{}

func (h *UserInfoHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.IdentityFromContext(r.Context())
	if !ok {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	response := authsdk.UserInfoResponse{
		Username:    id.Username,
		Staff:       id.Staff,
		Permissions: id.Permissions,
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, response)
}
