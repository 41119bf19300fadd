package httpx

import (
	"log/slog"
	"net/http"

	"github.com/caregrid/caregrid/internal/service"
)

// DefaultPublicPrefixes lists the routes reachable without an access token.
var DefaultPublicPrefixes = []string{
	"/auth/",
	"/healthz",
}

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Auth       AuthServiceInterface
	Admission  Admitter
	Onboarding OnboardingServiceInterface
	Cookies    CookieConfig
	// PublicPrefixes overrides DefaultPublicPrefixes when non-nil.
	PublicPrefixes []string
	// TrustHeadersOnly configures a downstream service that sits behind the
	// gateway: identity comes from injected trust headers, never from tokens.
	TrustHeadersOnly bool
	Logger           *slog.Logger
}

// NewRouter creates and configures the HTTP router with the gateway
// middleware chain.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()

	if services.Auth != nil {
		authHandlers := &AuthHandlers{
			Svc:       services.Auth,
			Admission: services.Admission,
			Cookies:   services.Cookies,
			Logger:    logger,
		}
		registerAuthRoutes(mux, authHandlers, services.Admission)
	}

	if services.Onboarding != nil {
		registerTenantRoutes(mux, &TenantHandlers{Svc: services.Onboarding})
	}

	mux.Handle("GET /api/me", http.HandlerFunc(meHandler))
	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))

	var handler http.Handler = mux
	if services.TrustHeadersOnly {
		handler = BindTenant()(handler)
	} else if services.Auth != nil {
		prefixes := services.PublicPrefixes
		if prefixes == nil {
			prefixes = DefaultPublicPrefixes
		}
		handler = EdgeAuth(EdgeAuthOptions{
			Validator:      services.Auth,
			PublicPrefixes: prefixes,
			CookieName:     services.Cookies.accessName(),
			Logger:         logger,
		})(handler)
	}

	handler = Logging(logger)(handler)
	handler = Recover(logger)(handler)
	return handler
}

func registerAuthRoutes(mux *http.ServeMux, h *AuthHandlers, admission Admitter) {
	mux.Handle("POST /auth/login", http.HandlerFunc(h.Login))
	mux.Handle("POST /auth/refresh", http.HandlerFunc(h.Refresh))
	mux.Handle("POST /auth/logout", http.HandlerFunc(h.Logout))
	mux.Handle("GET /auth/status", http.HandlerFunc(h.Status))
	mux.Handle("POST /auth/password-reset", http.HandlerFunc(h.PasswordReset))
	mux.Handle("GET /auth/oauth/login", http.HandlerFunc(h.OAuthLogin))

	// The callback has no caller identity to key on, so it is admitted by IP.
	callback := http.Handler(http.HandlerFunc(h.OAuthCallback))
	if admission != nil {
		callback = RateLimitByIP(admission, service.OpOAuthCallback)(callback)
	}
	mux.Handle("GET /auth/oauth/callback", callback)
}

func registerTenantRoutes(mux *http.ServeMux, h *TenantHandlers) {
	superAdmin := RequireSuperAdmin()
	mux.Handle("POST /admin/tenants", superAdmin(http.HandlerFunc(h.Create)))
	mux.Handle("GET /admin/tenants", superAdmin(http.HandlerFunc(h.List)))
	mux.Handle("GET /admin/tenants/{db_name}", superAdmin(http.HandlerFunc(h.Get)))
	mux.Handle("DELETE /admin/tenants/{db_name}", superAdmin(http.HandlerFunc(h.Decommission)))
}

// meHandler echoes the verified identity for the request, which downstream
// handlers read from the context bound by the gateway chain.
func meHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := GetClaimsFromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"id":             claims.UserID,
		"email":          claims.Email,
		"hospital_id":    claims.HospitalID,
		"tenant_db":      claims.TenantDB,
		"global_role":    claims.GlobalRole,
		"tenant_role":    claims.TenantRole,
		"tenant_user_id": claims.TenantUserID,
		"status":         claims.Status,
	})
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
