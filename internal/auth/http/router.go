package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/assetflow/internal/auth/authz"
	"github.com/aussiebroadwan/assetflow/internal/auth/service"
	"github.com/aussiebroadwan/assetflow/internal/auth/store"
	"github.com/aussiebroadwan/assetflow/internal/obs"
	"github.com/aussiebroadwan/assetflow/pkg/httpx"
	"github.com/aussiebroadwan/assetflow/pkg/jwtx"
	"github.com/aussiebroadwan/assetflow/pkg/slogx"

	_ "github.com/aussiebroadwan/assetflow/api/auth" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// DefaultAdminRoles are the role labels allowed on /v1/admin routes.
var DefaultAdminRoles = []string{"superadmin", "admin"}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	keys         *jwtx.KeySet
	verifier     jwtx.Verifier
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	store        store.Store

	LoginService *service.LoginService
	Evaluator    *authz.Evaluator
	Metrics      *obs.Metrics     // Optional: enables /metrics and request instrumentation
	Audit        ReadinessChecker // Optional: reported by /readyz
	AdminRoles   []string

	// Peers allowed to set X-Forwarded-For and X-Real-IP. Empty means the
	// service is reached directly.
	TrustedProxies httpx.TrustedProxies
}

func NewRouter(
	keys *jwtx.KeySet,
	verifier jwtx.Verifier,
	buildVersion string,
	st store.Store,
	logger *slog.Logger,
) *Router {
	return &Router{
		Mux:          http.NewServeMux(),
		keys:         keys,
		verifier:     verifier,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
		AdminRoles:   DefaultAdminRoles,
	}
}

// ApplyRoutes registers every route and fixes the global middleware chain.
// Set the optional fields before calling it.
func (r *Router) ApplyRoutes() {
	r.middlewares = []httpx.Middleware{
		httpx.ClientIPMiddleware(r.TrustedProxies),
		slogx.HTTPMiddleware(r.logger),
	}
	if r.Metrics != nil {
		r.middlewares = append(r.middlewares, r.Metrics.Instrument)
		r.Mux.Handle("GET /metrics", r.Metrics.Handler())
	}

	r.registerLogin()
	r.registerAccount()
	r.registerAdmin()
	r.registerAuthz()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			AssetFlow Authentication Service API
//	@version		0.1.0
//	@description	Adaptive login and permission decisions for the county asset register.
//	@description
//	@description				Logins are scored for risk and may be challenged with an emailed code.
//	@description				Access tokens are EdDSA signed JWTs and can be verified using the JWKS endpoint.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/assetflow
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT access token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerLogin() {
	h := &LoginHandler{LoginService: r.LoginService}

	// POST /login - strict limit keyed on IP and email
	r.Mux.Handle("POST /v1/auth/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			httpx.RateLimitByIPAndJSONField(httpx.StrictLimit, "email"),
		),
	)

	// Challenge completion - strict by IP (six digit codes are guessable)
	r.Mux.Handle("POST /v1/auth/mfa/verify",
		httpx.Chain(http.HandlerFunc(h.HandleVerifyMFA),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /v1/auth/password/force-change",
		httpx.Chain(http.HandlerFunc(h.HandleForcePasswordChange),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// POST /unlock - moderate, tokens are long and single purpose
	r.Mux.Handle("POST /v1/auth/unlock",
		httpx.Chain(http.HandlerFunc(h.HandleUnlock),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerAccount() {
	h := &AccountHandler{LoginService: r.LoginService}

	secured := func(fn http.HandlerFunc, limit httpx.RateLimitConfig) http.Handler {
		return httpx.Chain(fn,
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimitByUser(limit),
		)
	}

	r.Mux.Handle("POST /v1/auth/ip-whitelist", secured(h.HandleWhitelistIP, httpx.StrictLimit))
	r.Mux.Handle("GET /v1/auth/devices", secured(h.HandleListDevices, httpx.LenientLimit))
	r.Mux.Handle("DELETE /v1/auth/devices/{id}", secured(h.HandleForgetDevice, httpx.ModerateLimit))
	r.Mux.Handle("GET /v1/auth/login-history", secured(h.HandleLoginHistory, httpx.LenientLimit))
}

func (r *Router) registerAdmin() {
	h := &AccountHandler{LoginService: r.LoginService}

	r.Mux.Handle("GET /v1/admin/accounts/{id}/login-history",
		httpx.Chain(http.HandlerFunc(h.HandleAccountLoginHistory),
			httpx.AuthnMiddleware(r.verifier),
			httpx.RequireAnyRole(r.AdminRoles...),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerAuthz() {
	h := &AuthzHandler{Evaluator: r.Evaluator, Accounts: r.store.Accounts()}

	// Called by other services on every guarded request
	r.Mux.Handle("POST /v1/authz/check",
		httpx.Chain(http.HandlerFunc(h.HandleCheck),
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimitByUser(httpx.PublicLimit),
		),
	)
	r.Mux.Handle("GET /v1/authz/scope",
		httpx.Chain(http.HandlerFunc(h.HandleScope),
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /.well-known/jwks.json",
		httpx.Chain(JWKSHandler(r.keys),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)

	// Health check endpoints - lenient rate limits (monitoring systems may poll frequently)
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.keys, r.Audit),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}
