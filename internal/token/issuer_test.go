package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/caregrid/caregrid/internal/domain/auth"
)

func newTestIssuer(t *testing.T) *Issuer {
	t.Helper()
	codec := newTestCodec(t, nil)
	iss, err := NewIssuer(IssuerOptions{
		Codec:           codec,
		AccessLifetime:  15 * time.Minute,
		RefreshLifetime: 7 * 24 * time.Hour,
	})
	require.NoError(t, err)
	return iss
}

func sampleUser() domainauth.User {
	return domainauth.User{
		ID:           "user-1",
		Email:        "doc@stmarys.example",
		HospitalID:   7,
		TenantDB:     "tenant_stmarys",
		GlobalRole:   domainauth.RoleHospitalUser,
		TenantRole:   domainauth.TenantRoleDoctor,
		TenantUserID: 42,
		Status:       domainauth.StatusActive,
	}
}

func TestIssuePair(t *testing.T) {
	iss := newTestIssuer(t)

	access, refresh, err := iss.IssuePair(sampleUser())
	require.NoError(t, err)

	ac, err := iss.ValidateAccess(access)
	require.NoError(t, err)
	assert.Equal(t, "tenant_stmarys", ac.TenantDB)
	assert.Equal(t, domainauth.TenantRoleDoctor, ac.TenantRole)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), ac.ExpiresAt, 5*time.Second)

	rc, err := iss.ValidateRefresh(refresh)
	require.NoError(t, err)
	assert.Equal(t, "user-1", rc.UserID)
	assert.Empty(t, rc.TenantDB, "refresh tokens carry no tenant fields")
	assert.Empty(t, rc.GlobalRole, "refresh tokens carry no role fields")
	assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), rc.ExpiresAt, 5*time.Second)
}

func TestRefreshTokenRejectedWhereAccessRequired(t *testing.T) {
	iss := newTestIssuer(t)

	refresh, err := iss.IssueRefreshToken(sampleUser())
	require.NoError(t, err)

	// The signature is valid...
	_, err = iss.Validate(refresh)
	require.NoError(t, err)

	// ...but access-gated validation must still reject it.
	_, err = iss.ValidateAccess(refresh)
	assert.Error(t, err)
}

func TestAccessTokenRejectedWhereRefreshRequired(t *testing.T) {
	iss := newTestIssuer(t)

	access, err := iss.IssueAccessToken(sampleUser())
	require.NoError(t, err)

	_, err = iss.ValidateRefresh(access)
	assert.Error(t, err)
}

func TestNewIssuerValidation(t *testing.T) {
	codec := newTestCodec(t, nil)

	_, err := NewIssuer(IssuerOptions{AccessLifetime: time.Minute, RefreshLifetime: time.Hour})
	assert.Error(t, err, "codec required")

	_, err = NewIssuer(IssuerOptions{Codec: codec, RefreshLifetime: time.Hour})
	assert.Error(t, err, "access lifetime required")
}
