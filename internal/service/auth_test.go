package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	domainauth "github.com/caregrid/caregrid/internal/domain/auth"
	apperrors "github.com/caregrid/caregrid/internal/errors"
	mockauth "github.com/caregrid/caregrid/internal/mocks/auth"
	"github.com/caregrid/caregrid/internal/ports"
	"github.com/caregrid/caregrid/internal/token"
)

func newTestIssuer(t *testing.T) *token.Issuer {
	t.Helper()
	codec, err := token.NewCodec(token.CodecOptions{
		Secret: []byte("test-secret-test-secret-test-1234"),
		Issuer: "caregrid-test",
	})
	require.NoError(t, err)
	issuer, err := token.NewIssuer(token.IssuerOptions{
		Codec:           codec,
		AccessLifetime:  15 * time.Minute,
		RefreshLifetime: 24 * time.Hour,
	})
	require.NoError(t, err)
	return issuer
}

func testUser(t *testing.T, password string) domainauth.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return domainauth.User{
		ID:           "c3c9f1a2-0000-0000-0000-000000000001",
		Email:        "doc@hospital-a.example",
		PasswordHash: string(hash),
		HospitalID:   7,
		TenantDB:     "hospital_a",
		GlobalRole:   domainauth.RoleHospitalUser,
		TenantRole:   domainauth.TenantRoleDoctor,
		TenantUserID: 42,
		Status:       domainauth.StatusActive,
	}
}

func newTestAuthService(t *testing.T, opts AuthServiceOptions) *AuthService {
	t.Helper()
	if opts.Issuer == nil {
		opts.Issuer = newTestIssuer(t)
	}
	if opts.Denylist == nil {
		opts.Denylist = mockauth.NewMemoryDenylist()
	}
	return NewAuthService(opts)
}

func TestAuthService_Login(t *testing.T) {
	user := testUser(t, "correct horse")

	t.Run("valid credentials yield a pair", func(t *testing.T) {
		svc := newTestAuthService(t, AuthServiceOptions{Users: mockauth.NewMemoryUserStore(user)})

		pair, err := svc.Login(context.Background(), user.Email, "correct horse")
		require.NoError(t, err)
		require.NotEmpty(t, pair.AccessToken)
		require.NotEmpty(t, pair.RefreshToken)
		assert.Equal(t, 15*time.Minute, pair.AccessTTL)

		claims, err := svc.ValidateAccess(pair.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, user.ID, claims.UserID)
		assert.Equal(t, "hospital_a", claims.TenantDB)
		assert.Equal(t, domainauth.TenantRoleDoctor, claims.TenantRole)
	})

	t.Run("wrong password is unauthorized", func(t *testing.T) {
		svc := newTestAuthService(t, AuthServiceOptions{Users: mockauth.NewMemoryUserStore(user)})

		_, err := svc.Login(context.Background(), user.Email, "wrong")
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeUnauthenticated))
	})

	t.Run("unknown email is unauthorized, not not-found", func(t *testing.T) {
		svc := newTestAuthService(t, AuthServiceOptions{Users: mockauth.NewMemoryUserStore(user)})

		_, err := svc.Login(context.Background(), "nobody@hospital-a.example", "correct horse")
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeUnauthenticated))
	})

	t.Run("disabled account is forbidden", func(t *testing.T) {
		disabled := testUser(t, "correct horse")
		disabled.Status = domainauth.StatusDisabled
		svc := newTestAuthService(t, AuthServiceOptions{Users: mockauth.NewMemoryUserStore(disabled)})

		_, err := svc.Login(context.Background(), disabled.Email, "correct horse")
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeForbidden))
	})

	t.Run("empty credentials are unauthorized", func(t *testing.T) {
		svc := newTestAuthService(t, AuthServiceOptions{Users: mockauth.NewMemoryUserStore(user)})

		_, err := svc.Login(context.Background(), "", "")
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeUnauthenticated))
	})
}

func TestAuthService_Refresh(t *testing.T) {
	user := testUser(t, "correct horse")

	login := func(t *testing.T, svc *AuthService) *TokenPair {
		t.Helper()
		pair, err := svc.Login(context.Background(), user.Email, "correct horse")
		require.NoError(t, err)
		return pair
	}

	t.Run("valid refresh yields a new pair and rotates the old token", func(t *testing.T) {
		svc := newTestAuthService(t, AuthServiceOptions{Users: mockauth.NewMemoryUserStore(user)})
		pair := login(t, svc)

		next, err := svc.Refresh(context.Background(), pair.RefreshToken)
		require.NoError(t, err)
		require.NotEmpty(t, next.AccessToken)

		// The presented refresh token must be dead after rotation.
		_, err = svc.Refresh(context.Background(), pair.RefreshToken)
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeUnauthenticated))
	})

	t.Run("new access token reflects current user state", func(t *testing.T) {
		store := mockauth.NewMemoryUserStore(user)
		svc := newTestAuthService(t, AuthServiceOptions{Users: store})
		pair := login(t, svc)

		promoted := user
		promoted.TenantRole = domainauth.TenantRoleAdmin
		store.Add(promoted)

		next, err := svc.Refresh(context.Background(), pair.RefreshToken)
		require.NoError(t, err)

		claims, err := svc.ValidateAccess(next.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, domainauth.TenantRoleAdmin, claims.TenantRole)
	})

	t.Run("access token is rejected where refresh is required", func(t *testing.T) {
		svc := newTestAuthService(t, AuthServiceOptions{Users: mockauth.NewMemoryUserStore(user)})
		pair := login(t, svc)

		_, err := svc.Refresh(context.Background(), pair.AccessToken)
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeUnauthenticated))
	})

	t.Run("user disabled since issuance is forbidden", func(t *testing.T) {
		store := mockauth.NewMemoryUserStore(user)
		svc := newTestAuthService(t, AuthServiceOptions{Users: store})
		pair := login(t, svc)

		disabled := user
		disabled.Status = domainauth.StatusDisabled
		store.Add(disabled)

		_, err := svc.Refresh(context.Background(), pair.RefreshToken)
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeForbidden))
	})

	t.Run("malformed token is unauthorized", func(t *testing.T) {
		svc := newTestAuthService(t, AuthServiceOptions{Users: mockauth.NewMemoryUserStore(user)})

		_, err := svc.Refresh(context.Background(), "not-a-token")
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeUnauthenticated))
	})
}

func TestAuthService_Logout(t *testing.T) {
	user := testUser(t, "correct horse")

	t.Run("logout revokes the refresh token", func(t *testing.T) {
		svc := newTestAuthService(t, AuthServiceOptions{Users: mockauth.NewMemoryUserStore(user)})
		pair, err := svc.Login(context.Background(), user.Email, "correct horse")
		require.NoError(t, err)

		require.NoError(t, svc.Logout(context.Background(), pair.RefreshToken))

		_, err = svc.Refresh(context.Background(), pair.RefreshToken)
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeUnauthenticated))
	})

	t.Run("invalid or empty tokens are a no-op", func(t *testing.T) {
		svc := newTestAuthService(t, AuthServiceOptions{Users: mockauth.NewMemoryUserStore(user)})
		require.NoError(t, svc.Logout(context.Background(), ""))
		require.NoError(t, svc.Logout(context.Background(), "garbage"))
	})
}

func TestAuthService_CompleteSSO(t *testing.T) {
	user := testUser(t, "correct horse")

	t.Run("matched identity yields a pair", func(t *testing.T) {
		provider := &mockauth.MockIdentityProvider{
			DefaultIdentity: ports.SSOIdentity{Subject: "oid-1", Email: user.Email},
		}
		svc := newTestAuthService(t, AuthServiceOptions{
			Users:    mockauth.NewMemoryUserStore(user),
			Provider: provider,
		})

		pair, err := svc.CompleteSSO(context.Background(), ports.ExchangeInput{Code: "code", State: "s", Nonce: "n"})
		require.NoError(t, err)
		assert.NotEmpty(t, pair.AccessToken)
		assert.Equal(t, user.Email, pair.Claims.Email)
	})

	t.Run("identity without platform account is unauthorized", func(t *testing.T) {
		provider := &mockauth.MockIdentityProvider{
			DefaultIdentity: ports.SSOIdentity{Subject: "oid-2", Email: "stranger@elsewhere.example"},
		}
		svc := newTestAuthService(t, AuthServiceOptions{
			Users:    mockauth.NewMemoryUserStore(user),
			Provider: provider,
		})

		_, err := svc.CompleteSSO(context.Background(), ports.ExchangeInput{Code: "code"})
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeUnauthenticated))
	})

	t.Run("nil provider rejects", func(t *testing.T) {
		svc := newTestAuthService(t, AuthServiceOptions{Users: mockauth.NewMemoryUserStore(user)})
		_, err := svc.CompleteSSO(context.Background(), ports.ExchangeInput{Code: "code"})
		require.Error(t, err)
	})
}

func TestAuthService_RequestPasswordReset(t *testing.T) {
	user := testUser(t, "correct horse")

	t.Run("known email gets a reset token", func(t *testing.T) {
		notifier := &mockauth.MockResetNotifier{}
		svc := newTestAuthService(t, AuthServiceOptions{
			Users:         mockauth.NewMemoryUserStore(user),
			ResetNotifier: notifier,
		})

		require.NoError(t, svc.RequestPasswordReset(context.Background(), user.Email))
		require.Len(t, notifier.Sent, 1)
		assert.Equal(t, user.Email, notifier.Sent[0].Email)
		assert.NotEmpty(t, notifier.Sent[0].Token)
	})

	t.Run("unknown email succeeds silently", func(t *testing.T) {
		notifier := &mockauth.MockResetNotifier{}
		svc := newTestAuthService(t, AuthServiceOptions{
			Users:         mockauth.NewMemoryUserStore(user),
			ResetNotifier: notifier,
		})

		require.NoError(t, svc.RequestPasswordReset(context.Background(), "nobody@hospital-a.example"))
		assert.Empty(t, notifier.Sent)
	})

	t.Run("empty email is a validation error", func(t *testing.T) {
		svc := newTestAuthService(t, AuthServiceOptions{
			Users:         mockauth.NewMemoryUserStore(user),
			ResetNotifier: &mockauth.MockResetNotifier{},
		})

		err := svc.RequestPasswordReset(context.Background(), "")
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidation))
	})
}
