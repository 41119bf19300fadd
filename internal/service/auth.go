package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	domainauth "github.com/caregrid/caregrid/internal/domain/auth"
	apperrors "github.com/caregrid/caregrid/internal/errors"
	"github.com/caregrid/caregrid/internal/ports"
	"github.com/caregrid/caregrid/internal/token"
)

// TokenPair is the result of a successful credential or refresh exchange.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
	Claims       domainauth.Claims
}

// AuthServiceOptions groups dependencies for AuthService.
type AuthServiceOptions struct {
	Users    ports.UserStore
	Issuer   *token.Issuer
	Denylist ports.TokenDenylist
	// Provider handles hospital SSO; nil disables the SSO routes.
	Provider ports.IdentityProvider
	// ResetNotifier delivers password-reset tokens; nil disables resets.
	ResetNotifier ports.ResetNotifier
	Logger        *slog.Logger
}

// AuthService orchestrates credential checks, token issuance, rotation, and
// revocation. It is the single claim-schema owner: every downstream service
// validates through the same issuer.
type AuthService struct {
	users         ports.UserStore
	issuer        *token.Issuer
	denylist      ports.TokenDenylist
	provider      ports.IdentityProvider
	resetNotifier ports.ResetNotifier
	logger        *slog.Logger
}

// NewAuthService constructs a new AuthService.
func NewAuthService(opts AuthServiceOptions) *AuthService {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		users:         opts.Users,
		issuer:        opts.Issuer,
		denylist:      opts.Denylist,
		provider:      opts.Provider,
		resetNotifier: opts.ResetNotifier,
		logger:        logger.With("component", "auth"),
	}
}

// Login checks credentials and issues the access+refresh pair. All credential
// failures collapse to Unauthenticated so callers cannot probe for accounts.
func (s *AuthService) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	if email == "" || password == "" {
		return nil, apperrors.Unauthenticated(errors.New("missing credentials"))
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if apperrors.IsCode(err, apperrors.ErrCodeNotFound) {
			return nil, apperrors.Unauthenticated(err)
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	if bcryptErr := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); bcryptErr != nil {
		return nil, apperrors.Unauthenticated(bcryptErr)
	}
	if user.Status == domainauth.StatusDisabled {
		return nil, apperrors.Forbidden("account is disabled")
	}

	return s.issuePair(user)
}

// Refresh exchanges a valid, unrevoked refresh token for a new pair. The
// user's role and tenant fields are re-read so the new access token reflects
// current state, and the presented refresh token is rotated out.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.issuer.ValidateRefresh(refreshToken)
	if err != nil {
		return nil, apperrors.Unauthenticated(err)
	}

	fp := Fingerprint(refreshToken)
	revoked, err := s.denylist.IsRevoked(ctx, fp)
	if err != nil {
		return nil, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return nil, apperrors.Unauthenticated(errors.New("refresh token revoked"))
	}

	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if apperrors.IsCode(err, apperrors.ErrCodeNotFound) {
			return nil, apperrors.Unauthenticated(err)
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user.Status == domainauth.StatusDisabled {
		return nil, apperrors.Forbidden("account is disabled")
	}

	// Rotate: the old refresh token dies with this exchange.
	if revokeErr := s.denylist.Revoke(ctx, fp, time.Until(claims.ExpiresAt)); revokeErr != nil {
		return nil, fmt.Errorf("rotate refresh token: %w", revokeErr)
	}

	return s.issuePair(user)
}

// Logout revokes the presented refresh token until its natural expiry.
// Invalid or missing tokens are a no-op: logout never fails the user.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	claims, err := s.issuer.ValidateRefresh(refreshToken)
	if err != nil {
		return nil
	}
	if revokeErr := s.denylist.Revoke(ctx, Fingerprint(refreshToken), time.Until(claims.ExpiresAt)); revokeErr != nil {
		return fmt.Errorf("revoke refresh token: %w", revokeErr)
	}
	return nil
}

// ValidateAccess verifies an access token and returns its claims.
func (s *AuthService) ValidateAccess(tokenStr string) (domainauth.Claims, error) {
	return s.issuer.ValidateAccess(tokenStr)
}

// BeginSSO starts the hospital SSO flow.
func (s *AuthService) BeginSSO(ctx context.Context, redirectURL string) (authURL, state, nonce string, err error) {
	if s.provider == nil {
		return "", "", "", errors.New("sso is not configured")
	}
	return s.provider.Begin(ctx, ports.BeginInput{RedirectURL: redirectURL})
}

// CompleteSSO finishes the SSO flow and issues a pair for the matched
// platform account. An SSO identity with no platform account is rejected;
// provisioning accounts is the onboarding flow's job.
func (s *AuthService) CompleteSSO(ctx context.Context, in ports.ExchangeInput) (*TokenPair, error) {
	if s.provider == nil {
		return nil, errors.New("sso is not configured")
	}

	identity, err := s.provider.Exchange(ctx, in)
	if err != nil {
		return nil, apperrors.Unauthenticated(err)
	}

	user, err := s.users.FindByEmail(ctx, identity.Email)
	if err != nil {
		if apperrors.IsCode(err, apperrors.ErrCodeNotFound) {
			return nil, apperrors.Unauthenticated(err)
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user.Status == domainauth.StatusDisabled {
		return nil, apperrors.Forbidden("account is disabled")
	}

	return s.issuePair(user)
}

// RequestPasswordReset generates a reset token and hands it to the notifier.
// Unknown emails succeed silently so the endpoint is not an account oracle.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	if s.resetNotifier == nil {
		return errors.New("password reset is not configured")
	}
	if email == "" {
		return apperrors.Validation("email is required")
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if apperrors.IsCode(err, apperrors.ErrCodeNotFound) {
			s.logger.InfoContext(ctx, "password reset for unknown email, ignoring")
			return nil
		}
		return fmt.Errorf("find user: %w", err)
	}

	resetToken := uuid.NewString()
	if sendErr := s.resetNotifier.SendReset(ctx, user.Email, resetToken); sendErr != nil {
		return fmt.Errorf("send reset: %w", sendErr)
	}
	return nil
}

func (s *AuthService) issuePair(user domainauth.User) (*TokenPair, error) {
	access, refresh, err := s.issuer.IssuePair(user)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		AccessTTL:    s.issuer.AccessLifetime(),
		RefreshTTL:   s.issuer.RefreshLifetime(),
		Claims:       domainauth.ClaimsForUser(user),
	}, nil
}

// Fingerprint returns the denylist key for a token. Raw tokens are never
// stored.
func Fingerprint(tokenStr string) string {
	sum := sha256.Sum256([]byte(tokenStr))
	return hex.EncodeToString(sum[:])
}
