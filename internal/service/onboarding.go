package service

import (
	"context"
	"fmt"
	"log/slog"

	domaintenant "github.com/caregrid/caregrid/internal/domain/tenant"
	apperrors "github.com/caregrid/caregrid/internal/errors"
	"github.com/caregrid/caregrid/internal/ports"
)

// PoolEvictor drops cached connection pools for a tenant database. Satisfied
// by tenantdb.Pools.
type PoolEvictor interface {
	Evict(dbName string)
}

// OnboardingOptions groups dependencies for OnboardingService.
type OnboardingOptions struct {
	Tenants     ports.TenantStore
	Provisioner ports.TenantProvisioner
	Pools       PoolEvictor
	Logger      *slog.Logger
}

// OnboardingService drives the tenant lifecycle: record creation, database
// provisioning, schema initialization, activation, and decommissioning.
type OnboardingService struct {
	tenants     ports.TenantStore
	provisioner ports.TenantProvisioner
	pools       PoolEvictor
	logger      *slog.Logger
}

// NewOnboardingService constructs an OnboardingService.
func NewOnboardingService(opts OnboardingOptions) *OnboardingService {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &OnboardingService{
		tenants:     opts.Tenants,
		provisioner: opts.Provisioner,
		pools:       opts.Pools,
		logger:      logger.With("component", "onboarding"),
	}
}

// CreateTenantInput carries the parameters for onboarding one hospital.
type CreateTenantInput struct {
	Name       string
	DBName     string
	DBUser     string
	DBPassword string
}

func (in CreateTenantInput) validate() error {
	if in.Name == "" {
		return apperrors.Validation("name is required")
	}
	if err := domaintenant.ValidateIdentifier(in.DBName); err != nil {
		return apperrors.Validation(err.Error())
	}
	if err := domaintenant.ValidateIdentifier(in.DBUser); err != nil {
		return apperrors.Validation(err.Error())
	}
	if in.DBPassword == "" {
		return apperrors.Validation("db password is required")
	}
	return nil
}

// CreateTenant records the tenant as PENDING, provisions its database and
// role, applies the tenant schema, and only then flips the record ACTIVE.
// Requests routed to the tenant before activation are refused by the pool
// layer, so a half-provisioned tenant is never reachable.
func (s *OnboardingService) CreateTenant(ctx context.Context, in CreateTenantInput) (domaintenant.Tenant, error) {
	if err := in.validate(); err != nil {
		return domaintenant.Tenant{}, err
	}

	rec, err := s.tenants.Create(ctx, domaintenant.Tenant{
		Name:       in.Name,
		DBName:     in.DBName,
		DBUser:     in.DBUser,
		DBPassword: in.DBPassword,
		Status:     domaintenant.StatusPending,
	})
	if err != nil {
		return domaintenant.Tenant{}, fmt.Errorf("create tenant record: %w", err)
	}

	spec := ports.ProvisionSpec{DBName: in.DBName, DBUser: in.DBUser, DBPassword: in.DBPassword}
	if err := s.provisioner.Provision(ctx, spec); err != nil {
		return domaintenant.Tenant{}, apperrors.Provisioning(fmt.Sprintf("provision database %s", in.DBName), err)
	}
	if err := s.provisioner.InitializeSchema(ctx, spec); err != nil {
		return domaintenant.Tenant{}, apperrors.Provisioning(fmt.Sprintf("initialize schema for %s", in.DBName), err)
	}

	if err := s.tenants.SetStatus(ctx, in.DBName, domaintenant.StatusActive); err != nil {
		return domaintenant.Tenant{}, fmt.Errorf("activate tenant: %w", err)
	}
	rec.Status = domaintenant.StatusActive

	s.logger.InfoContext(ctx, "tenant provisioned", "db_name", in.DBName)
	return rec, nil
}

// DecommissionTenant marks the tenant DECOMMISSIONED, evicts its cached
// pools, and drops the database and role. The record is marked first so new
// requests stop routing to the tenant before the database disappears.
func (s *OnboardingService) DecommissionTenant(ctx context.Context, dbName string) error {
	if err := domaintenant.ValidateIdentifier(dbName); err != nil {
		return apperrors.Validation(err.Error())
	}

	rec, err := s.tenants.GetByDBName(ctx, dbName)
	if err != nil {
		return fmt.Errorf("load tenant: %w", err)
	}

	if err := s.tenants.SetStatus(ctx, dbName, domaintenant.StatusDecommissioned); err != nil {
		return fmt.Errorf("mark tenant decommissioned: %w", err)
	}
	if s.pools != nil {
		s.pools.Evict(dbName)
	}

	if err := s.provisioner.Decommission(ctx, dbName, rec.DBUser); err != nil {
		return apperrors.Provisioning(fmt.Sprintf("decommission database %s", dbName), err)
	}

	s.logger.InfoContext(ctx, "tenant decommissioned", "db_name", dbName)
	return nil
}

// ListTenants returns all tenant records.
func (s *OnboardingService) ListTenants(ctx context.Context) ([]domaintenant.Tenant, error) {
	return s.tenants.List(ctx)
}

// GetTenant returns one tenant record by database name.
func (s *OnboardingService) GetTenant(ctx context.Context, dbName string) (domaintenant.Tenant, error) {
	if err := domaintenant.ValidateIdentifier(dbName); err != nil {
		return domaintenant.Tenant{}, apperrors.Validation(err.Error())
	}
	return s.tenants.GetByDBName(ctx, dbName)
}
