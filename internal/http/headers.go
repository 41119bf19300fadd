package httpx

import (
	"net/http"
	"strconv"

	domainauth "github.com/caregrid/caregrid/internal/domain/auth"
)

// Trust headers carry the verified identity from the gateway to downstream
// services. Anything a client sends under these names is stripped before the
// gateway injects its own values, so downstream code can trust them blindly.
const (
	HeaderUserID       = "X-User-Id"
	HeaderEmail        = "X-Email"
	HeaderHospitalID   = "X-Hospital-Id"
	HeaderTenantDB     = "X-Tenant-Db"
	HeaderGlobalRole   = "X-Global-Role"
	HeaderTenantRole   = "X-Tenant-Role"
	HeaderTenantUserID = "X-Tenant-User-Id"
	HeaderUserStatus   = "X-User-Status"
)

var trustHeaders = []string{
	HeaderUserID,
	HeaderEmail,
	HeaderHospitalID,
	HeaderTenantDB,
	HeaderGlobalRole,
	HeaderTenantRole,
	HeaderTenantUserID,
	HeaderUserStatus,
}

// StripTrustHeaders removes every trust header from the set, regardless of
// origin. Called on the inbound request before injection.
func StripTrustHeaders(h http.Header) {
	for _, name := range trustHeaders {
		h.Del(name)
	}
}

// SetTrustHeaders writes the claim set into the trust headers. Empty or zero
// fields are omitted rather than written blank, mirroring the optional claims.
func SetTrustHeaders(h http.Header, claims domainauth.Claims) {
	h.Set(HeaderUserID, claims.UserID)
	h.Set(HeaderEmail, claims.Email)
	if claims.HospitalID != 0 {
		h.Set(HeaderHospitalID, strconv.FormatInt(claims.HospitalID, 10))
	}
	if claims.TenantDB != "" {
		h.Set(HeaderTenantDB, claims.TenantDB)
	}
	if claims.GlobalRole != "" {
		h.Set(HeaderGlobalRole, string(claims.GlobalRole))
	}
	if claims.TenantRole != "" {
		h.Set(HeaderTenantRole, string(claims.TenantRole))
	}
	if claims.TenantUserID != 0 {
		h.Set(HeaderTenantUserID, strconv.FormatInt(claims.TenantUserID, 10))
	}
	if claims.Status != "" {
		h.Set(HeaderUserStatus, string(claims.Status))
	}
}

// ClaimsFromTrustHeaders reconstructs the claim set injected by the gateway.
// Only usable behind the gateway; raw client headers never reach here.
func ClaimsFromTrustHeaders(h http.Header) (domainauth.Claims, bool) {
	userID := h.Get(HeaderUserID)
	if userID == "" {
		return domainauth.Claims{}, false
	}

	claims := domainauth.Claims{
		UserID:     userID,
		Email:      h.Get(HeaderEmail),
		TenantDB:   h.Get(HeaderTenantDB),
		GlobalRole: domainauth.GlobalRole(h.Get(HeaderGlobalRole)),
		TenantRole: domainauth.TenantRole(h.Get(HeaderTenantRole)),
		Status:     domainauth.UserStatus(h.Get(HeaderUserStatus)),
	}
	if v := h.Get(HeaderHospitalID); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			claims.HospitalID = id
		}
	}
	if v := h.Get(HeaderTenantUserID); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			claims.TenantUserID = id
		}
	}
	return claims, true
}
