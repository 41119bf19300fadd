package tenant

// Package tenant contains domain-level types for onboarded hospitals and their
// isolated databases.

import (
	"fmt"
	"regexp"
	"time"
)

// Status represents a tenant's provisioning lifecycle state.
type Status string

const (
	// StatusPending means the tenant record exists but its database has not
	// been provisioned and migrated yet.
	StatusPending Status = "PENDING"
	// StatusActive means provisioning and schema migration succeeded.
	StatusActive Status = "ACTIVE"
	// StatusDecommissioned means the tenant database has been dropped.
	StatusDecommissioned Status = "DECOMMISSIONED"
)

// Tenant is the persisted platform-level record for one onboarded hospital.
// DBName is embedded into every session token issued for the tenant's users
// and is the lookup key the request-scoped tenant context resolves to a live
// connection pool.
type Tenant struct {
	HospitalID int64     `json:"hospital_id"`
	Name       string    `json:"name"`
	DBName     string    `json:"db_name"`
	DBUser     string    `json:"db_user"`
	DBPassword string    `json:"-"`
	Status     Status    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

// IsActive reports whether the tenant is fully provisioned.
func (t Tenant) IsActive() bool { return t.Status == StatusActive }

// identRe matches identifiers we are willing to embed as database or role
// names. Lower-case snake only, must not start with a digit, bounded length.
var identRe = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// ValidateIdentifier rejects database/role names that could not have come from
// our own provisioning flow. Names derived from user input must pass through
// this before reaching any DDL statement.
func ValidateIdentifier(name string) error {
	if name == "" {
		return fmt.Errorf("identifier is empty")
	}
	if !identRe.MatchString(name) {
		return fmt.Errorf("invalid identifier %q: must match %s", name, identRe.String())
	}
	return nil
}
