package platform

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	domainauth "github.com/caregrid/caregrid/internal/domain/auth"
	apperrors "github.com/caregrid/caregrid/internal/errors"
	"github.com/caregrid/caregrid/internal/ports"
)

// UserRepo loads platform-level user accounts for credential checks and
// refresh-token rotation. Tenant fields are resolved through a join so the
// claim set always reflects the tenant's current database name.
type UserRepo struct {
	pool *pgxpool.Pool
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

var _ ports.UserStore = (*UserRepo)(nil)

const userColumns = `
	u.id, u.email, u.password_hash, COALESCE(u.hospital_id, 0),
	COALESCE(t.db_name, ''), u.global_role, COALESCE(u.tenant_role, ''),
	COALESCE(u.tenant_user_id, 0), u.status`

// FindByEmail loads a user by email (case-insensitive).
func (r *UserRepo) FindByEmail(ctx context.Context, email string) (domainauth.User, error) {
	q := `
		SELECT ` + userColumns + `
		FROM users u
		LEFT JOIN tenants t ON t.hospital_id = u.hospital_id
		WHERE lower(u.email) = lower($1)`
	return r.scanUser(ctx, q, strings.TrimSpace(email))
}

// FindByID loads a user by its opaque stable id.
func (r *UserRepo) FindByID(ctx context.Context, id string) (domainauth.User, error) {
	q := `
		SELECT ` + userColumns + `
		FROM users u
		LEFT JOIN tenants t ON t.hospital_id = u.hospital_id
		WHERE u.id = $1`
	return r.scanUser(ctx, q, id)
}

func (r *UserRepo) scanUser(ctx context.Context, query string, arg any) (domainauth.User, error) {
	var u domainauth.User
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.HospitalID,
		&u.TenantDB, &u.GlobalRole, &u.TenantRole,
		&u.TenantUserID, &u.Status,
	)
	if err != nil {
		return domainauth.User{}, apperrors.MapDBError(err)
	}
	return u, nil
}
