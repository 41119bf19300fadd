package ports

import "context"

// ProvisionSpec carries the parameters for creating one tenant database and
// its credentialed role.
type ProvisionSpec struct {
	DBName     string
	DBUser     string
	DBPassword string
}

// TenantProvisioner creates, schema-initializes, and drops isolated tenant
// databases. All operations must be safe to retry.
type TenantProvisioner interface {
	Provision(ctx context.Context, spec ProvisionSpec) error
	InitializeSchema(ctx context.Context, spec ProvisionSpec) error
	Decommission(ctx context.Context, dbName, dbUser string) error
}
