package ports

// Package ports defines interfaces (hexagonal ports) for auth, admission, and
// tenant behavior. Implementations live in internal/adapters and internal/data;
// orchestration in internal/service.

import (
	"context"
	"time"

	domainauth "github.com/caregrid/caregrid/internal/domain/auth"
	domaintenant "github.com/caregrid/caregrid/internal/domain/tenant"
)

// UserStore loads platform-level user accounts for credential checks and
// refresh-token rotation.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (domainauth.User, error)
	FindByID(ctx context.Context, id string) (domainauth.User, error)
}

// AdmissionDecision is the outcome of a token-bucket consume attempt.
type AdmissionDecision struct {
	Allowed bool
	// WaitSeconds is how long until enough tokens will exist, when not allowed.
	WaitSeconds int
}

// AdmissionPolicy configures one bucket class: capacity tokens, refilled at
// RefillTokens per RefillPeriod.
type AdmissionPolicy struct {
	Capacity     int
	RefillTokens int
	RefillPeriod time.Duration
}

// AdmissionStore performs the atomic check-and-decrement against the shared
// counter store. Replicas share no memory, so the read-modify-write must be a
// single server-side operation per key.
type AdmissionStore interface {
	TryConsume(ctx context.Context, key string, policy AdmissionPolicy) (AdmissionDecision, error)
}

// TokenDenylist records revoked refresh tokens until their natural expiry.
// Keys are fingerprints, never raw tokens.
type TokenDenylist interface {
	Revoke(ctx context.Context, fingerprint string, ttl time.Duration) error
	IsRevoked(ctx context.Context, fingerprint string) (bool, error)
}

// TenantStore persists platform-level tenant records.
type TenantStore interface {
	Create(ctx context.Context, t domaintenant.Tenant) (domaintenant.Tenant, error)
	GetByDBName(ctx context.Context, dbName string) (domaintenant.Tenant, error)
	SetStatus(ctx context.Context, dbName string, status domaintenant.Status) error
	List(ctx context.Context) ([]domaintenant.Tenant, error)
}

// BeginInput carries inputs for initiating an SSO flow.
type BeginInput struct {
	RedirectURL string
}

// ExchangeInput groups parameters for the SSO code/token exchange.
type ExchangeInput struct {
	Code  string
	State string
	Nonce string
}

// SSOIdentity is the authenticated principal returned by an identity provider.
type SSOIdentity struct {
	Subject   string
	Email     string
	FirstName string
	LastName  string
	ExpiresAt time.Time
}

// IdentityProvider initiates and completes an SSO flow against a hospital IdP.
type IdentityProvider interface {
	Begin(ctx context.Context, in BeginInput) (authURL, state, nonce string, err error)
	Exchange(ctx context.Context, in ExchangeInput) (SSOIdentity, error)
}

// ResetNotifier delivers password-reset instructions. Content and delivery are
// external collaborators; the core only hands over the token.
type ResetNotifier interface {
	SendReset(ctx context.Context, email, resetToken string) error
}
