package httpx

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	domainauth "github.com/caregrid/caregrid/internal/domain/auth"
	domaintenant "github.com/caregrid/caregrid/internal/domain/tenant"
)

// TokenValidator verifies an access token and returns its claims. Satisfied
// by service.AuthService.
type TokenValidator interface {
	ValidateAccess(tokenStr string) (domainauth.Claims, error)
}

// EdgeAuthOptions configures the gateway authentication filter.
type EdgeAuthOptions struct {
	Validator TokenValidator
	// PublicPrefixes lists path prefixes that skip token validation, such as
	// the login and health endpoints.
	PublicPrefixes []string
	// CookieName is the access-token cookie. Defaults to "access_token".
	CookieName string
	Logger     *slog.Logger
}

// EdgeAuth returns the gateway filter. Every request first loses any
// client-supplied trust headers. Public paths then pass through bare;
// everything else must carry a valid access token, whose claims are injected
// as trust headers and bound into the request context for in-process
// downstream handlers.
func EdgeAuth(opts EdgeAuthOptions) func(http.Handler) http.Handler {
	cookieName := opts.CookieName
	if cookieName == "" {
		cookieName = "access_token"
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Client-supplied identity headers are never forwarded.
			StripTrustHeaders(r.Header)

			if isPublicPath(r.URL.Path, opts.PublicPrefixes) {
				next.ServeHTTP(w, r)
				return
			}

			tokenStr := extractToken(r, cookieName)
			if tokenStr == "" {
				writeUnauthorized(w)
				return
			}

			claims, err := opts.Validator.ValidateAccess(tokenStr)
			if err != nil {
				logger.InfoContext(r.Context(), "access token rejected", "path", r.URL.Path, "error", err)
				writeUnauthorized(w)
				return
			}

			SetTrustHeaders(r.Header, claims)

			ctx := SetClaimsInContext(r.Context(), claims)
			ctx = domaintenant.NewContext(ctx, claims.TenantDB)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BindTenant returns the downstream-service filter. It trusts the headers the
// gateway injected, reconstructing claims and tenant binding without touching
// the token. Only meaningful on services that are never internet-facing.
func BindTenant() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromTrustHeaders(r.Header)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			ctx := SetClaimsInContext(r.Context(), claims)
			ctx = domaintenant.NewContext(ctx, claims.TenantDB)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireSuperAdmin returns a middleware that admits only platform
// super-admins. It runs behind EdgeAuth or BindTenant, so absent claims mean
// an unauthenticated request.
func RequireSuperAdmin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := GetClaimsFromContext(r.Context())
			if !ok {
				writeUnauthorized(w)
				return
			}
			if !claims.IsSuperAdmin() {
				WriteError(w, ErrorParams{
					Code:    http.StatusForbidden,
					ErrCode: "forbidden",
					Err:     errors.New("insufficient permissions"),
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func isPublicPath(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// extractToken reads the access token from the cookie, falling back to a
// bearer Authorization header for non-browser clients.
func extractToken(r *http.Request, cookieName string) string {
	if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
		return c.Value
	}
	const bearerPrefix = "Bearer "
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, bearerPrefix) {
		return strings.TrimSpace(auth[len(bearerPrefix):])
	}
	return ""
}

func writeUnauthorized(w http.ResponseWriter) {
	WriteJSON(w, http.StatusUnauthorized, map[string]string{
		"error":   "unauthorized",
		"message": "invalid token",
	})
}
