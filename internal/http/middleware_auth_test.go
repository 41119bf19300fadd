package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/caregrid/caregrid/internal/domain/auth"
	domaintenant "github.com/caregrid/caregrid/internal/domain/tenant"
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

func doctorUser() domainauth.User {
	return domainauth.User{
		ID:           "c3c9f1a2-0000-0000-0000-000000000001",
		Email:        "doc@hospital-a.example",
		HospitalID:   7,
		TenantDB:     "hospital_a",
		GlobalRole:   domainauth.RoleHospitalUser,
		TenantRole:   domainauth.TenantRoleDoctor,
		TenantUserID: 42,
		Status:       domainauth.StatusActive,
	}
}

// capture records what the downstream handler observed.
type capture struct {
	called   bool
	headers  http.Header
	claims   domainauth.Claims
	claimsOK bool
	tenantDB string
	tenantOK bool
}

func captureHandler(c *capture) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.called = true
		c.headers = r.Header.Clone()
		c.claims, c.claimsOK = GetClaimsFromContext(r.Context())
		c.tenantDB, c.tenantOK = domaintenant.FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestEdgeAuth(t *testing.T) {
	issuer := newTestIssuer(t)

	accessToken := func(t *testing.T, u domainauth.User) string {
		t.Helper()
		tok, err := issuer.IssueAccessToken(u)
		require.NoError(t, err)
		return tok
	}

	newFilter := func(c *capture) http.Handler {
		return EdgeAuth(EdgeAuthOptions{
			Validator:      issuer,
			PublicPrefixes: []string{"/auth/", "/healthz"},
		})(captureHandler(c))
	}

	t.Run("valid token injects trust headers and binds context", func(t *testing.T) {
		var c capture
		r := httptest.NewRequest(http.MethodGet, "/api/appointments", nil)
		r.AddCookie(&http.Cookie{Name: "access_token", Value: accessToken(t, doctorUser())})
		w := httptest.NewRecorder()

		newFilter(&c).ServeHTTP(w, r)

		require.True(t, c.called)
		assert.Equal(t, "c3c9f1a2-0000-0000-0000-000000000001", c.headers.Get(HeaderUserID))
		assert.Equal(t, "doc@hospital-a.example", c.headers.Get(HeaderEmail))
		assert.Equal(t, "7", c.headers.Get(HeaderHospitalID))
		assert.Equal(t, "hospital_a", c.headers.Get(HeaderTenantDB))
		assert.Equal(t, "DOCTOR", c.headers.Get(HeaderTenantRole))
		assert.Equal(t, "42", c.headers.Get(HeaderTenantUserID))
		assert.Equal(t, "ACTIVE", c.headers.Get(HeaderUserStatus))

		require.True(t, c.claimsOK)
		assert.Equal(t, domainauth.TenantRoleDoctor, c.claims.TenantRole)
		require.True(t, c.tenantOK)
		assert.Equal(t, "hospital_a", c.tenantDB)
	})

	t.Run("bearer header works for non-browser clients", func(t *testing.T) {
		var c capture
		r := httptest.NewRequest(http.MethodGet, "/api/appointments", nil)
		r.Header.Set("Authorization", "Bearer "+accessToken(t, doctorUser()))
		w := httptest.NewRecorder()

		newFilter(&c).ServeHTTP(w, r)

		require.True(t, c.called)
		assert.True(t, c.claimsOK)
	})

	t.Run("client-supplied trust headers are overwritten", func(t *testing.T) {
		var c capture
		r := httptest.NewRequest(http.MethodGet, "/api/appointments", nil)
		r.AddCookie(&http.Cookie{Name: "access_token", Value: accessToken(t, doctorUser())})
		r.Header.Set(HeaderTenantDB, "hospital_b")
		r.Header.Set(HeaderGlobalRole, "SUPER_ADMIN")
		w := httptest.NewRecorder()

		newFilter(&c).ServeHTTP(w, r)

		require.True(t, c.called)
		assert.Equal(t, "hospital_a", c.headers.Get(HeaderTenantDB))
		assert.Equal(t, "HOSPITAL_USER", c.headers.Get(HeaderGlobalRole))
		assert.Equal(t, "hospital_a", c.tenantDB)
	})

	t.Run("missing token is rejected before the downstream handler", func(t *testing.T) {
		var c capture
		r := httptest.NewRequest(http.MethodGet, "/api/appointments", nil)
		w := httptest.NewRecorder()

		newFilter(&c).ServeHTTP(w, r)

		assert.False(t, c.called)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.JSONEq(t, `{"error":"unauthorized","message":"invalid token"}`, w.Body.String())
	})

	t.Run("tampered token is rejected with the same body", func(t *testing.T) {
		var c capture
		r := httptest.NewRequest(http.MethodGet, "/api/appointments", nil)
		r.AddCookie(&http.Cookie{Name: "access_token", Value: accessToken(t, doctorUser()) + "x"})
		w := httptest.NewRecorder()

		newFilter(&c).ServeHTTP(w, r)

		assert.False(t, c.called)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.JSONEq(t, `{"error":"unauthorized","message":"invalid token"}`, w.Body.String())
	})

	t.Run("refresh token is not an access token", func(t *testing.T) {
		refresh, err := issuer.IssueRefreshToken(doctorUser())
		require.NoError(t, err)

		var c capture
		r := httptest.NewRequest(http.MethodGet, "/api/appointments", nil)
		r.AddCookie(&http.Cookie{Name: "access_token", Value: refresh})
		w := httptest.NewRecorder()

		newFilter(&c).ServeHTTP(w, r)

		assert.False(t, c.called)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("public paths pass through without identity", func(t *testing.T) {
		var c capture
		r := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		r.Header.Set(HeaderGlobalRole, "SUPER_ADMIN")
		w := httptest.NewRecorder()

		newFilter(&c).ServeHTTP(w, r)

		require.True(t, c.called)
		assert.False(t, c.claimsOK)
		// Spoofed trust headers are stripped even on public paths.
		assert.Empty(t, c.headers.Get(HeaderGlobalRole))
	})

	t.Run("tenant binding does not leak across sequential requests", func(t *testing.T) {
		other := doctorUser()
		other.TenantDB = "hospital_b"
		other.HospitalID = 8

		filterA, filterB := &capture{}, &capture{}

		rA := httptest.NewRequest(http.MethodGet, "/api/appointments", nil)
		rA.AddCookie(&http.Cookie{Name: "access_token", Value: accessToken(t, doctorUser())})
		newFilter(filterA).ServeHTTP(httptest.NewRecorder(), rA)

		rB := httptest.NewRequest(http.MethodGet, "/api/appointments", nil)
		rB.AddCookie(&http.Cookie{Name: "access_token", Value: accessToken(t, other)})
		newFilter(filterB).ServeHTTP(httptest.NewRecorder(), rB)

		assert.Equal(t, "hospital_a", filterA.tenantDB)
		assert.Equal(t, "hospital_b", filterB.tenantDB)
	})
}

func TestBindTenant(t *testing.T) {
	t.Run("reconstructs identity from injected headers", func(t *testing.T) {
		var c capture
		r := httptest.NewRequest(http.MethodGet, "/api/appointments", nil)
		SetTrustHeaders(r.Header, domainauth.ClaimsForUser(doctorUser()))
		w := httptest.NewRecorder()

		BindTenant()(captureHandler(&c)).ServeHTTP(w, r)

		require.True(t, c.called)
		require.True(t, c.claimsOK)
		assert.Equal(t, "doc@hospital-a.example", c.claims.Email)
		assert.Equal(t, int64(7), c.claims.HospitalID)
		assert.Equal(t, "hospital_a", c.tenantDB)
	})

	t.Run("absent headers leave the request anonymous", func(t *testing.T) {
		var c capture
		r := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		w := httptest.NewRecorder()

		BindTenant()(captureHandler(&c)).ServeHTTP(w, r)

		require.True(t, c.called)
		assert.False(t, c.claimsOK)
		assert.False(t, c.tenantOK)
	})
}

func TestRequireSuperAdmin(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	guard := RequireSuperAdmin()(next)

	t.Run("super admin passes", func(t *testing.T) {
		admin := doctorUser()
		admin.GlobalRole = domainauth.RoleSuperAdmin

		r := httptest.NewRequest(http.MethodPost, "/admin/tenants", nil)
		r = r.WithContext(SetClaimsInContext(r.Context(), domainauth.ClaimsForUser(admin)))
		w := httptest.NewRecorder()
		guard.ServeHTTP(w, r)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("other roles are forbidden", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/admin/tenants", nil)
		r = r.WithContext(SetClaimsInContext(r.Context(), domainauth.ClaimsForUser(doctorUser())))
		w := httptest.NewRecorder()
		guard.ServeHTTP(w, r)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("no identity is unauthorized", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/admin/tenants", nil)
		w := httptest.NewRecorder()
		guard.ServeHTTP(w, r)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
