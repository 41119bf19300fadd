package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/caregrid/caregrid/internal/domain/auth"
)

func newTestCodec(t *testing.T, now func() time.Time) *Codec {
	t.Helper()
	c, err := NewCodec(CodecOptions{
		Secret: []byte("test-signing-secret"),
		Issuer: "caregrid",
		Now:    now,
	})
	require.NoError(t, err)
	return c
}

func sampleClaims(now time.Time) domainauth.Claims {
	return domainauth.Claims{
		UserID:       "user-1",
		Email:        "doc@stmarys.example",
		HospitalID:   7,
		TenantDB:     "tenant_stmarys",
		GlobalRole:   domainauth.RoleHospitalUser,
		TenantRole:   domainauth.TenantRoleDoctor,
		TenantUserID: 42,
		Status:       domainauth.StatusActive,
		TokenClass:   domainauth.TokenClassAccess,
		IssuedAt:     now,
		ExpiresAt:    now.Add(time.Hour),
	}
}

func TestCodecRoundTrip(t *testing.T) {
	now := time.Now().Truncate(time.Second)
	codec := newTestCodec(t, func() time.Time { return now })

	want := sampleClaims(now)
	signed, err := codec.Sign(want)
	require.NoError(t, err)

	got, err := codec.Verify(signed)
	require.NoError(t, err)

	assert.Equal(t, want.UserID, got.UserID)
	assert.Equal(t, want.Email, got.Email)
	assert.Equal(t, want.HospitalID, got.HospitalID)
	assert.Equal(t, want.TenantDB, got.TenantDB)
	assert.Equal(t, want.GlobalRole, got.GlobalRole)
	assert.Equal(t, want.TenantRole, got.TenantRole)
	assert.Equal(t, want.TenantUserID, got.TenantUserID)
	assert.Equal(t, want.Status, got.Status)
	assert.Equal(t, want.TokenClass, got.TokenClass)
	assert.WithinDuration(t, want.ExpiresAt, got.ExpiresAt, time.Second)
}

func TestCodecRejectsWrongKey(t *testing.T) {
	now := time.Now()
	codec := newTestCodec(t, func() time.Time { return now })

	other, err := NewCodec(CodecOptions{Secret: []byte("a-different-secret")})
	require.NoError(t, err)
	signed, err := other.Sign(sampleClaims(now))
	require.NoError(t, err)

	_, err = codec.Verify(signed)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestCodecRejectsExpired(t *testing.T) {
	issuedAt := time.Now().Add(-2 * time.Hour)
	codec := newTestCodec(t, nil)

	claims := sampleClaims(issuedAt) // expiry = issuedAt + 1h, already past
	signed, err := codec.Sign(claims)
	require.NoError(t, err)

	_, err = codec.Verify(signed)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestCodecRejectsMalformed(t *testing.T) {
	codec := newTestCodec(t, nil)

	for _, tok := range []string{"", "not-a-token", "a.b", "a.b.c"} {
		_, err := codec.Verify(tok)
		assert.ErrorIs(t, err, ErrMalformed, "token %q", tok)
	}
}

func TestCodecRequiresExpiry(t *testing.T) {
	codec := newTestCodec(t, nil)
	_, err := codec.Sign(domainauth.Claims{UserID: "u"})
	assert.Error(t, err)
}

func TestCodecRejectsAlgNone(t *testing.T) {
	codec := newTestCodec(t, nil)

	// Unsigned token with alg=none: header {"alg":"none","typ":"JWT"}.
	unsigned := "eyJhbGciOiJub25lIiwidHlwIjoiSldUIn0.eyJzdWIiOiJ1c2VyLTEifQ."
	_, err := codec.Verify(unsigned)
	assert.Error(t, err)
}
