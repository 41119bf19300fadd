package auth

// Package auth contains domain-level types for authentication and session claims.
// It is pure and free of framework/adapter concerns.

import "time"

// GlobalRole represents a platform-scope authorization role.
// Keep string form for easy persistence and header transport.
type GlobalRole string

const (
	RoleSuperAdmin    GlobalRole = "SUPER_ADMIN"
	RoleHospitalAdmin GlobalRole = "HOSPITAL_ADMIN"
	RoleHospitalUser  GlobalRole = "HOSPITAL_USER"
)

// TenantRole represents a hospital-scope authorization role.
// Empty until tenant onboarding completes for the user.
type TenantRole string

const (
	TenantRoleAdmin   TenantRole = "ADMIN"
	TenantRoleDoctor  TenantRole = "DOCTOR"
	TenantRolePatient TenantRole = "PATIENT"
)

// UserStatus represents an account lifecycle state.
type UserStatus string

const (
	StatusActive   UserStatus = "ACTIVE"
	StatusPending  UserStatus = "PENDING"
	StatusDisabled UserStatus = "DISABLED"
)

// TokenClass distinguishes access tokens from refresh tokens.
type TokenClass string

const (
	TokenClassAccess  TokenClass = "access"
	TokenClassRefresh TokenClass = "refresh"
)

// Claims is the session claim set carried by a signed token.
//
// A token of class refresh carries only identity fields (UserID, Email,
// TokenClass), never role or tenant fields, so it cannot be used for
// authorization, only for renewal.
type Claims struct {
	UserID       string     `json:"user_id"`
	Email        string     `json:"email"`
	HospitalID   int64      `json:"hospital_id,omitempty"`
	TenantDB     string     `json:"tenant_db,omitempty"`
	GlobalRole   GlobalRole `json:"global_role,omitempty"`
	TenantRole   TenantRole `json:"tenant_role,omitempty"`
	TenantUserID int64      `json:"tenant_user_id,omitempty"`
	Status       UserStatus `json:"status,omitempty"`
	TokenClass   TokenClass `json:"token_class"`
	IssuedAt     time.Time  `json:"-"`
	ExpiresAt    time.Time  `json:"-"`
}

// IsAccess reports whether the claims belong to an access token.
func (c Claims) IsAccess() bool { return c.TokenClass == TokenClassAccess }

// IsRefresh reports whether the claims belong to a refresh token.
func (c Claims) IsRefresh() bool { return c.TokenClass == TokenClassRefresh }

// IsSuperAdmin reports whether the claims identify a platform super-admin.
// Super-admins operate at platform scope and carry no tenant database.
func (c Claims) IsSuperAdmin() bool { return c.GlobalRole == RoleSuperAdmin }

// User represents a platform-level user account as seen by the auth subsystem.
// The per-tenant clinical record is owned by the tenant database, not here.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	HospitalID   int64
	TenantDB     string
	GlobalRole   GlobalRole
	TenantRole   TenantRole
	TenantUserID int64
	Status       UserStatus
}

// ClaimsForUser builds the full access-token claim set for a user.
func ClaimsForUser(u User) Claims {
	return Claims{
		UserID:       u.ID,
		Email:        u.Email,
		HospitalID:   u.HospitalID,
		TenantDB:     u.TenantDB,
		GlobalRole:   u.GlobalRole,
		TenantRole:   u.TenantRole,
		TenantUserID: u.TenantUserID,
		Status:       u.Status,
		TokenClass:   TokenClassAccess,
	}
}

// RefreshClaimsForUser builds the identity-only refresh claim set for a user.
func RefreshClaimsForUser(u User) Claims {
	return Claims{
		UserID:     u.ID,
		Email:      u.Email,
		TokenClass: TokenClassRefresh,
	}
}
