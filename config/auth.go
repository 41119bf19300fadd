package config

import (
	"fmt"
	"strings"
	"time"
)

// AuthMode represents the single sign-on mode for hospital staff.
type AuthMode string

const (
	// AuthModePassword uses credential login only.
	AuthModePassword AuthMode = "password"
	// AuthModeOAuth additionally enables OIDC single sign-on.
	AuthModeOAuth AuthMode = "oauth"
)

// UnmarshalText implements encoding.TextUnmarshaler for AuthMode.
func (a *AuthMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(string(text))
	switch v {
	case "password", "oauth":
		*a = AuthMode(v)
		return nil
	default:
		return fmt.Errorf("invalid AuthMode: %q (valid options: password, oauth)", v)
	}
}

// OAuthConfig contains OAuth/OIDC configuration for hospital SSO.
type OAuthConfig struct {
	ClientID     string `env:"CLIENT_ID"     envDefault:"caregrid"`
	ClientSecret string `env:"CLIENT_SECRET" envDefault:""`
	RedirectURL  string `env:"REDIRECT_URL"  envDefault:"http://localhost:8080/auth/oauth/callback"`
	Scope        string `env:"SCOPE"         envDefault:"openid profile email"`
	DiscoveryURL string `env:"DISCOVERY_URL"`
}

// TokenConfig contains the signing key and token lifetimes.
type TokenConfig struct {
	// Secret is the shared HMAC signing key. All services that validate
	// tokens must carry the same value.
	Secret string `env:"SECRET,required"`

	// Issuer appears in the iss claim of every signed token.
	Issuer string `env:"ISSUER" envDefault:"caregrid"`

	AccessLifetime  time.Duration `env:"ACCESS_LIFETIME"  envDefault:"15m"`
	RefreshLifetime time.Duration `env:"REFRESH_LIFETIME" envDefault:"168h"`
}

// AuthConfig groups all authentication-related configuration.
type AuthConfig struct {
	// Mode determines whether SSO routes are enabled.
	Mode AuthMode `env:"AUTH_MODE" envDefault:"password"`

	// Token signing configuration.
	Token TokenConfig `envPrefix:"TOKEN_"`

	// OAuth configuration (used when Mode=oauth).
	OAuth OAuthConfig `envPrefix:"OAUTH_"`

	// CookieDomain is the domain for session cookies.
	// Leave empty to use the request domain.
	CookieDomain string `env:"APP_COOKIE_DOMAIN" envDefault:""`

	// AccessCookieName holds the session token at the gateway.
	AccessCookieName string `env:"APP_ACCESS_COOKIE_NAME" envDefault:"access_token"`

	// RefreshCookieName holds the refresh token, scoped to the auth routes.
	RefreshCookieName string `env:"APP_REFRESH_COOKIE_NAME" envDefault:"refresh_token"`

	// PublicPrefixes lists path prefixes that skip gateway token validation.
	PublicPrefixes []string `env:"AUTH_PUBLIC_PREFIXES" envDefault:"/auth/;/healthz" envSeparator:";"`
}

// Sanitize applies guardrails to auth configuration values.
func (a *AuthConfig) Sanitize() {
	if a.Token.AccessLifetime <= 0 {
		a.Token.AccessLifetime = 15 * time.Minute
	}
	if a.Token.RefreshLifetime <= a.Token.AccessLifetime {
		a.Token.RefreshLifetime = 7 * 24 * time.Hour
	}
}
