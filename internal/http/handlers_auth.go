package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/caregrid/caregrid/internal/ports"
	"github.com/caregrid/caregrid/internal/service"
)

var (
	errMissingEmail       = errors.New("email is required")
	errMissingOAuthParams = errors.New("code and state parameters are required")
	errInvalidState       = errors.New("invalid or missing state parameter")
)

// AuthServiceInterface defines the interface for auth service operations.
type AuthServiceInterface interface {
	Login(ctx context.Context, email, password string) (*service.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*service.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	BeginSSO(ctx context.Context, redirectURL string) (authURL, state, nonce string, err error)
	CompleteSSO(ctx context.Context, in ports.ExchangeInput) (*service.TokenPair, error)
	RequestPasswordReset(ctx context.Context, email string) error
	TokenValidator
}

// CookieConfig controls the session cookie attributes.
type CookieConfig struct {
	// AccessName is the access-token cookie. Defaults to "access_token".
	AccessName string
	// RefreshName is the refresh-token cookie. Defaults to "refresh_token".
	RefreshName string
	Domain      string
	// RefreshPath scopes the refresh cookie so it only travels to the refresh
	// and logout endpoints. Defaults to "/auth".
	RefreshPath string
}

func (c CookieConfig) accessName() string {
	if c.AccessName != "" {
		return c.AccessName
	}
	return "access_token"
}

func (c CookieConfig) refreshName() string {
	if c.RefreshName != "" {
		return c.RefreshName
	}
	return "refresh_token"
}

func (c CookieConfig) refreshPath() string {
	if c.RefreshPath != "" {
		return c.RefreshPath
	}
	return "/auth"
}

// AuthHandlers provides HTTP handlers for authentication operations.
type AuthHandlers struct {
	Svc       AuthServiceInterface
	Admission Admitter
	Cookies   CookieConfig
	Logger    *slog.Logger
}

func (h *AuthHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login handles the credential login endpoint.
// POST /auth/login.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		writeUnauthorized(w)
		return
	}

	if !admit(w, r, h.Admission, service.OpLogin, req.Email) {
		return
	}

	pair, err := h.Svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		WriteAppError(w, err)
		return
	}

	h.setSessionCookies(w, r, pair)
	h.writePair(w, pair)
}

// Refresh rotates the refresh token and issues a fresh pair.
// POST /auth/refresh.
func (h *AuthHandlers) Refresh(w http.ResponseWriter, r *http.Request) {
	refreshToken := h.refreshTokenFromRequest(r)
	if refreshToken == "" {
		writeUnauthorized(w)
		return
	}

	pair, err := h.Svc.Refresh(r.Context(), refreshToken)
	if err != nil {
		h.clearSessionCookies(w, r)
		WriteAppError(w, err)
		return
	}

	h.setSessionCookies(w, r, pair)
	h.writePair(w, pair)
}

// Logout revokes the refresh token and clears the session cookies.
// POST /auth/logout.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	if refreshToken := h.refreshTokenFromRequest(r); refreshToken != "" {
		if err := h.Svc.Logout(r.Context(), refreshToken); err != nil {
			h.logger().WarnContext(r.Context(), "logout failed", "error", err)
		}
	}
	h.clearSessionCookies(w, r)
	WriteJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// Status returns the current authentication status.
// GET /auth/status.
func (h *AuthHandlers) Status(w http.ResponseWriter, r *http.Request) {
	tokenStr := extractToken(r, h.Cookies.accessName())
	if tokenStr == "" {
		WriteJSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}

	claims, err := h.Svc.ValidateAccess(tokenStr)
	if err != nil {
		h.clearCookie(w, r, h.Cookies.accessName(), "/")
		WriteJSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"user": map[string]any{
			"id":          claims.UserID,
			"email":       claims.Email,
			"global_role": claims.GlobalRole,
			"tenant_role": claims.TenantRole,
			"tenant_db":   claims.TenantDB,
		},
		"expires_at": claims.ExpiresAt,
	})
}

type passwordResetRequest struct {
	Email string `json:"email"`
}

// PasswordReset handles reset requests.
// POST /auth/password-reset.
func (h *AuthHandlers) PasswordReset(w http.ResponseWriter, r *http.Request) {
	var req passwordResetRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.Email == "" {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "validation", Err: errMissingEmail})
		return
	}

	if !admit(w, r, h.Admission, service.OpPasswordReset, req.Email) {
		return
	}

	if err := h.Svc.RequestPasswordReset(r.Context(), req.Email); err != nil {
		WriteAppError(w, err)
		return
	}

	// Accepted regardless of whether the account exists.
	WriteJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// OAuthLogin initiates the hospital SSO flow.
// GET /auth/oauth/login?redirect_uri=<optional_redirect>.
func (h *AuthHandlers) OAuthLogin(w http.ResponseWriter, r *http.Request) {
	redirectURI := safeRedirectPath(r.URL.Query().Get("redirect_uri"))

	authURL, state, nonce, err := h.Svc.BeginSSO(r.Context(), redirectURI)
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "login_failed", Err: err})
		return
	}

	h.setOAuthCookies(w, r, oauthCookieParams{State: state, Nonce: nonce, RedirectURI: redirectURI})
	http.Redirect(w, r, authURL, http.StatusFound)
}

// OAuthCallback completes the hospital SSO flow.
// GET /auth/oauth/callback?code=<code>&state=<state>.
func (h *AuthHandlers) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if code == "" || state == "" {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "missing_code", Err: errMissingOAuthParams})
		return
	}

	stateCookie, err := r.Cookie("oauth_state")
	if err != nil || stateCookie.Value != state {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_state", Err: errInvalidState})
		return
	}
	nonceCookie, err := r.Cookie("oauth_nonce")
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "missing_nonce", Err: errInvalidState})
		return
	}

	pair, err := h.Svc.CompleteSSO(r.Context(), ports.ExchangeInput{
		Code:  code,
		State: state,
		Nonce: nonceCookie.Value,
	})
	if err != nil {
		WriteAppError(w, err)
		return
	}

	h.setSessionCookies(w, r, pair)
	h.clearCookie(w, r, "oauth_state", "/")
	h.clearCookie(w, r, "oauth_nonce", "/")

	http.Redirect(w, r, h.getPostLoginRedirect(w, r), http.StatusFound)
}

func (h *AuthHandlers) writePair(w http.ResponseWriter, pair *service.TokenPair) {
	WriteJSON(w, http.StatusOK, map[string]any{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
		"expires_in":    int(pair.AccessTTL.Seconds()),
		"user": map[string]any{
			"id":          pair.Claims.UserID,
			"email":       pair.Claims.Email,
			"global_role": pair.Claims.GlobalRole,
			"tenant_role": pair.Claims.TenantRole,
			"tenant_db":   pair.Claims.TenantDB,
		},
	})
}

func (h *AuthHandlers) refreshTokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(h.Cookies.refreshName()); err == nil && c.Value != "" {
		return c.Value
	}
	return ""
}

func (h *AuthHandlers) setSessionCookies(w http.ResponseWriter, r *http.Request, pair *service.TokenPair) {
	isSecure := requestIsSecure(r)
	cd := h.Cookies.Domain

	http.SetCookie(w, &http.Cookie{
		Name:     h.Cookies.accessName(),
		Value:    pair.AccessToken,
		Path:     "/",
		Domain:   cd,
		HttpOnly: true,
		Secure:   isSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(pair.AccessTTL.Seconds()),
	})

	http.SetCookie(w, &http.Cookie{
		Name:     h.Cookies.refreshName(),
		Value:    pair.RefreshToken,
		Path:     h.Cookies.refreshPath(),
		Domain:   cd,
		HttpOnly: true,
		Secure:   isSecure,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(pair.RefreshTTL.Seconds()),
	})
}

func (h *AuthHandlers) clearSessionCookies(w http.ResponseWriter, r *http.Request) {
	h.clearCookie(w, r, h.Cookies.accessName(), "/")
	h.clearCookie(w, r, h.Cookies.refreshName(), h.Cookies.refreshPath())
}

// clearCookie clears a cookie by setting it to expire immediately.
// It mirrors key attributes (Secure, Path, Domain, SameSite) used when setting cookies
// to maximize compatibility across browsers during deletion.
func (h *AuthHandlers) clearCookie(w http.ResponseWriter, r *http.Request, name, path string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     path,
		Domain:   h.Cookies.Domain,
		HttpOnly: true,
		Secure:   requestIsSecure(r),
		MaxAge:   -1,
		Expires:  time.Unix(0, 0).UTC(),
		SameSite: http.SameSiteLaxMode,
	})
}

// oauthCookieParams groups values needed to set OAuth cookies.
type oauthCookieParams struct {
	State       string
	Nonce       string
	RedirectURI string
}

// setOAuthCookies stores OAuth state, nonce, and the post-login redirect in secure cookies.
func (h *AuthHandlers) setOAuthCookies(w http.ResponseWriter, r *http.Request, p oauthCookieParams) {
	isSecure := requestIsSecure(r)
	cd := h.Cookies.Domain

	for name, value := range map[string]string{
		"oauth_state":         p.State,
		"oauth_nonce":         p.Nonce,
		"post_login_redirect": p.RedirectURI,
	} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    value,
			Path:     "/",
			Domain:   cd,
			HttpOnly: true,
			Secure:   isSecure,
			SameSite: http.SameSiteLaxMode,
			MaxAge:   600, // 10 minutes
		})
	}
}

// getPostLoginRedirect returns the post-login redirect URL and clears the cookie.
func (h *AuthHandlers) getPostLoginRedirect(w http.ResponseWriter, r *http.Request) string {
	redirectURI := "/"
	if redirectCookie, err := r.Cookie("post_login_redirect"); err == nil {
		redirectURI = safeRedirectPath(redirectCookie.Value)
		h.clearCookie(w, r, "post_login_redirect", "/")
	}
	return redirectURI
}

func requestIsSecure(r *http.Request) bool {
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

// safeRedirectPath ensures the provided redirect is a same-origin relative path
// starting with "/" and not an absolute URL. Returns "/" when invalid.
func safeRedirectPath(candidate string) string {
	if candidate == "" {
		return "/"
	}
	u, err := url.Parse(candidate)
	if err != nil || u.IsAbs() || u.Host != "" || !strings.HasPrefix(u.Path, "/") {
		return "/"
	}
	return candidate
}
