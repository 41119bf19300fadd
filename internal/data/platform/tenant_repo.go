package platform

// Package platform contains repositories for the shared platform database:
// the tenant registry and platform-level user accounts.

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	domaintenant "github.com/caregrid/caregrid/internal/domain/tenant"
	apperrors "github.com/caregrid/caregrid/internal/errors"
	"github.com/caregrid/caregrid/internal/ports"
)

// TenantRepo persists tenant records in the platform database.
type TenantRepo struct {
	pool *pgxpool.Pool
}

// NewTenantRepo constructs a TenantRepo.
func NewTenantRepo(pool *pgxpool.Pool) *TenantRepo {
	return &TenantRepo{pool: pool}
}

var _ ports.TenantStore = (*TenantRepo)(nil)

// Create inserts a new tenant record in PENDING state and returns it with its
// assigned hospital id.
func (r *TenantRepo) Create(ctx context.Context, t domaintenant.Tenant) (domaintenant.Tenant, error) {
	const q = `
		INSERT INTO tenants (name, db_name, db_user, db_password, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING hospital_id, created_at`

	if t.Status == "" {
		t.Status = domaintenant.StatusPending
	}
	err := r.pool.QueryRow(ctx, q, t.Name, t.DBName, t.DBUser, t.DBPassword, t.Status).
		Scan(&t.HospitalID, &t.CreatedAt)
	if err != nil {
		return domaintenant.Tenant{}, apperrors.MapDBError(err)
	}
	return t, nil
}

// GetByDBName loads a tenant record by its database name.
func (r *TenantRepo) GetByDBName(ctx context.Context, dbName string) (domaintenant.Tenant, error) {
	const q = `
		SELECT hospital_id, name, db_name, db_user, db_password, status, created_at
		FROM tenants
		WHERE db_name = $1`

	var t domaintenant.Tenant
	err := r.pool.QueryRow(ctx, q, dbName).
		Scan(&t.HospitalID, &t.Name, &t.DBName, &t.DBUser, &t.DBPassword, &t.Status, &t.CreatedAt)
	if err != nil {
		return domaintenant.Tenant{}, apperrors.MapDBError(err)
	}
	return t, nil
}

// SetStatus transitions a tenant's lifecycle state.
func (r *TenantRepo) SetStatus(ctx context.Context, dbName string, status domaintenant.Status) error {
	tag, err := r.pool.Exec(ctx, `UPDATE tenants SET status = $1 WHERE db_name = $2`, status, dbName)
	if err != nil {
		return apperrors.MapDBError(err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("tenant not found")
	}
	return nil
}

// List returns all tenant records, newest first.
func (r *TenantRepo) List(ctx context.Context) ([]domaintenant.Tenant, error) {
	const q = `
		SELECT hospital_id, name, db_name, db_user, db_password, status, created_at
		FROM tenants
		ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	defer rows.Close()

	var tenants []domaintenant.Tenant
	for rows.Next() {
		var t domaintenant.Tenant
		if scanErr := rows.Scan(&t.HospitalID, &t.Name, &t.DBName, &t.DBUser, &t.DBPassword, &t.Status, &t.CreatedAt); scanErr != nil {
			return nil, apperrors.MapDBError(scanErr)
		}
		tenants = append(tenants, t)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, apperrors.MapDBError(rowsErr)
	}
	return tenants, nil
}
