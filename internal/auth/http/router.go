package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/northquay/tokend/internal/auth/service"
	"github.com/northquay/tokend/internal/auth/store"
	"github.com/northquay/tokend/pkg/httpx"
	"github.com/northquay/tokend/pkg/obs"
	"github.com/northquay/tokend/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	authHeader   string
	authPrefix   string
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store        store.Store
	TokenService *service.TokenService
}

func NewRouter(
	ts *service.TokenService,
	st store.Store,
	authHeader, authPrefix, buildVersion string,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		authHeader:   authHeader,
		authPrefix:   authPrefix,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
		store:        st,
		TokenService: ts,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		obs.Instrument,
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerToken()
	r.registerUserInfo()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerToken() {
	// POST /v1/token - strict rate limit by IP (authentication attempts)
	authHandler := &TokenAuthHandler{TokenService: r.TokenService}
	r.Mux.Handle("POST /v1/token",
		httpx.Chain(authHandler,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// POST /v1/token/verify - pure computation, no store access
	verifyHandler := &TokenVerifyHandler{TokenService: r.TokenService}
	r.Mux.Handle("POST /v1/token/verify", verifyHandler)

	// POST /v1/token/refresh - strict rate limit by IP (rotation attempts)
	refreshHandler := &TokenRefreshHandler{TokenService: r.TokenService}
	r.Mux.Handle("POST /v1/token/refresh",
		httpx.Chain(refreshHandler,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// POST /v1/token/revoke
	revokeHandler := &TokenRevokeHandler{TokenService: r.TokenService}
	r.Mux.Handle("POST /v1/token/revoke",
		httpx.Chain(revokeHandler,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerUserInfo() {
	h := &UserInfoHandler{}

	secured := httpx.Chain(h,
		httpx.AuthnMiddleware(r.TokenService, r.authHeader, r.authPrefix),
		httpx.RequireAuthenticated(),
	)

	r.Mux.Handle("GET /v1/userinfo", secured)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.startTime, r.buildVersion, r.store))
	r.Mux.Handle("GET /metrics", obs.Handler())
}
