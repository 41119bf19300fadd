package token

import (
	"errors"
	"fmt"
	"time"

	domainauth "github.com/caregrid/caregrid/internal/domain/auth"
)

// Issuer mints and validates access/refresh token pairs on top of the Codec.
type Issuer struct {
	codec           *Codec
	accessLifetime  time.Duration
	refreshLifetime time.Duration
	now             func() time.Time
}

// IssuerOptions groups constructor parameters for Issuer.
type IssuerOptions struct {
	Codec           *Codec
	AccessLifetime  time.Duration
	RefreshLifetime time.Duration
	// Now overrides the clock, for tests. Defaults to time.Now.
	Now func() time.Time
}

// NewIssuer constructs an Issuer.
func NewIssuer(opts IssuerOptions) (*Issuer, error) {
	if opts.Codec == nil {
		return nil, errors.New("codec is required")
	}
	if opts.AccessLifetime <= 0 || opts.RefreshLifetime <= 0 {
		return nil, errors.New("token lifetimes must be positive")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Issuer{
		codec:           opts.Codec,
		accessLifetime:  opts.AccessLifetime,
		refreshLifetime: opts.RefreshLifetime,
		now:             now,
	}, nil
}

// AccessLifetime returns the configured access-token lifetime, used to size
// cookie max-age at the HTTP boundary.
func (i *Issuer) AccessLifetime() time.Duration { return i.accessLifetime }

// RefreshLifetime returns the configured refresh-token lifetime.
func (i *Issuer) RefreshLifetime() time.Duration { return i.refreshLifetime }

// IssueAccessToken embeds the full session claim set for the user and signs it
// with expiry now + access lifetime.
func (i *Issuer) IssueAccessToken(u domainauth.User) (string, error) {
	claims := domainauth.ClaimsForUser(u)
	now := i.now()
	claims.IssuedAt = now
	claims.ExpiresAt = now.Add(i.accessLifetime)
	return i.codec.Sign(claims)
}

// IssueRefreshToken embeds only identity fields and signs with expiry
// now + refresh lifetime.
func (i *Issuer) IssueRefreshToken(u domainauth.User) (string, error) {
	claims := domainauth.RefreshClaimsForUser(u)
	now := i.now()
	claims.IssuedAt = now
	claims.ExpiresAt = now.Add(i.refreshLifetime)
	return i.codec.Sign(claims)
}

// IssuePair mints the access+refresh pair for a successfully authenticated user.
func (i *Issuer) IssuePair(u domainauth.User) (access, refresh string, err error) {
	access, err = i.IssueAccessToken(u)
	if err != nil {
		return "", "", fmt.Errorf("issue access token: %w", err)
	}
	refresh, err = i.IssueRefreshToken(u)
	if err != nil {
		return "", "", fmt.Errorf("issue refresh token: %w", err)
	}
	return access, refresh, nil
}

// Validate verifies the token and returns its claims. The token class is not
// checked here; use IsAccessToken/IsRefreshToken on the result.
func (i *Issuer) Validate(tokenStr string) (domainauth.Claims, error) {
	return i.codec.Verify(tokenStr)
}

// ValidateAccess verifies the token and additionally requires the access
// class. A refresh token presented where an access token is required is
// rejected even though its signature is valid.
func (i *Issuer) ValidateAccess(tokenStr string) (domainauth.Claims, error) {
	claims, err := i.codec.Verify(tokenStr)
	if err != nil {
		return domainauth.Claims{}, err
	}
	if !claims.IsAccess() {
		return domainauth.Claims{}, fmt.Errorf("%w: token class %q where access required", ErrMalformed, claims.TokenClass)
	}
	return claims, nil
}

// ValidateRefresh verifies the token and additionally requires the refresh class.
func (i *Issuer) ValidateRefresh(tokenStr string) (domainauth.Claims, error) {
	claims, err := i.codec.Verify(tokenStr)
	if err != nil {
		return domainauth.Claims{}, err
	}
	if !claims.IsRefresh() {
		return domainauth.Claims{}, fmt.Errorf("%w: token class %q where refresh required", ErrMalformed, claims.TokenClass)
	}
	return claims, nil
}
