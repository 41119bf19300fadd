package token

// Package token owns the session claim schema and the shared signing key.
// Every service validates through this package; no service re-derives its own
// claim parsing.

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	domainauth "github.com/caregrid/caregrid/internal/domain/auth"
)

// Verification failure categories. All three collapse to 401 at the HTTP
// boundary; they are distinguished internally for logging.
var (
	ErrInvalidSignature = errors.New("token signature invalid")
	ErrExpired          = errors.New("token expired")
	ErrMalformed        = errors.New("token malformed")
)

// jwtClaims is the wire shape of the session claim set.
type jwtClaims struct {
	Email        string                `json:"email,omitempty"`
	HospitalID   int64                 `json:"hospital_id,omitempty"`
	TenantDB     string                `json:"tenant_db,omitempty"`
	GlobalRole   domainauth.GlobalRole `json:"global_role,omitempty"`
	TenantRole   domainauth.TenantRole `json:"tenant_role,omitempty"`
	TenantUserID int64                 `json:"tenant_user_id,omitempty"`
	Status       domainauth.UserStatus `json:"status,omitempty"`
	TokenClass   domainauth.TokenClass `json:"token_class"`
	jwt.RegisteredClaims
}

// Codec signs and verifies session tokens with a symmetric key shared only
// among trusted services.
type Codec struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// CodecOptions groups constructor parameters for Codec.
type CodecOptions struct {
	Secret []byte
	Issuer string
	// Now overrides the clock, for tests. Defaults to time.Now.
	Now func() time.Time
}

// NewCodec constructs a Codec. The secret must be non-empty.
func NewCodec(opts CodecOptions) (*Codec, error) {
	if len(opts.Secret) == 0 {
		return nil, errors.New("token secret is required")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Codec{secret: opts.Secret, issuer: opts.Issuer, now: now}, nil
}

// Sign encodes the claim set into a signed token string. IssuedAt and
// ExpiresAt must already be set on the claims.
func (c *Codec) Sign(claims domainauth.Claims) (string, error) {
	if claims.ExpiresAt.IsZero() {
		return "", errors.New("claims expiry is required")
	}

	jc := jwtClaims{
		Email:        claims.Email,
		HospitalID:   claims.HospitalID,
		TenantDB:     claims.TenantDB,
		GlobalRole:   claims.GlobalRole,
		TenantRole:   claims.TenantRole,
		TenantUserID: claims.TenantUserID,
		Status:       claims.Status,
		TokenClass:   claims.TokenClass,
		RegisteredClaims: jwt.RegisteredClaims{
			// A unique ID keeps two tokens minted in the same second for the
			// same user from colliding, which matters for refresh rotation.
			ID:        uuid.NewString(),
			Subject:   claims.UserID,
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(claims.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jc)
	signed, err := tok.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify decodes and validates a token string, returning the claim set.
// Expiry is always checked; an expired or signature-invalid token is
// indistinguishable from an absent one to external callers.
func (c *Codec) Verify(tokenStr string) (domainauth.Claims, error) {
	var jc jwtClaims
	tok, err := jwt.ParseWithClaims(tokenStr, &jc, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return c.secret, nil
	}, jwt.WithTimeFunc(c.now), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return domainauth.Claims{}, classifyJWTError(err)
	}
	if !tok.Valid {
		return domainauth.Claims{}, ErrInvalidSignature
	}

	claims := domainauth.Claims{
		UserID:       jc.Subject,
		Email:        jc.Email,
		HospitalID:   jc.HospitalID,
		TenantDB:     jc.TenantDB,
		GlobalRole:   jc.GlobalRole,
		TenantRole:   jc.TenantRole,
		TenantUserID: jc.TenantUserID,
		Status:       jc.Status,
		TokenClass:   jc.TokenClass,
	}
	if jc.IssuedAt != nil {
		claims.IssuedAt = jc.IssuedAt.Time
	}
	if jc.ExpiresAt != nil {
		claims.ExpiresAt = jc.ExpiresAt.Time
	}
	return claims, nil
}

func classifyJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrExpired, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	default:
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
}
