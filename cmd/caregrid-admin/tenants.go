package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/caregrid/caregrid/internal/bootstrap"
	"github.com/caregrid/caregrid/internal/data/platform"
	"github.com/caregrid/caregrid/internal/data/tenantdb"
	"github.com/caregrid/caregrid/internal/migrate"
	"github.com/caregrid/caregrid/internal/service"
)

func runMigrate(ctx *commandContext, args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	timeout := fs.Duration("timeout", defaultMigrationTimeout, "migration timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}

	db, err := bootstrap.ConnectDB(bootstrap.DatabaseConfig{DBConfig: ctx.Config.Postgres, Logger: ctx.Logger})
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer db.Close() //nolint:errcheck // admin CLI; close errors are not actionable

	runCtx, cancel := context.WithTimeout(ctx.Ctx, *timeout)
	defer cancel()

	if err := migrate.RunPlatform(runCtx, db); err != nil {
		return fmt.Errorf("run platform migrations: %w", err)
	}
	ctx.Logger.InfoContext(runCtx, "platform migrations applied")
	return nil
}

// newOnboarding builds an onboarding service backed by the real provisioner.
// The admin CLI does not need Redis or the auth stack.
func newOnboarding(ctx *commandContext) (*service.OnboardingService, func(), error) {
	pool, err := bootstrap.ConnectPool(ctx.Ctx, bootstrap.DatabaseConfig{DBConfig: ctx.Config.Postgres, Logger: ctx.Logger})
	if err != nil {
		return nil, nil, fmt.Errorf("connect pool: %w", err)
	}

	tenantRepo := platform.NewTenantRepo(pool)
	adminCfg := tenantdb.AdminConfig{
		Host:          ctx.Config.TenantAdmin.Host,
		Port:          ctx.Config.TenantAdmin.Port,
		User:          ctx.Config.TenantAdmin.User,
		Password:      ctx.Config.TenantAdmin.Password,
		SSLMode:       ctx.Config.TenantAdmin.SSLMode,
		MaintenanceDB: ctx.Config.TenantAdmin.MaintenanceDB,
	}

	svc := service.NewOnboardingService(service.OnboardingOptions{
		Tenants:     tenantRepo,
		Provisioner: tenantdb.NewManager(adminCfg, ctx.Logger),
		Logger:      ctx.Logger,
	})
	return svc, pool.Close, nil
}

func runTenantCreate(ctx *commandContext, args []string) error {
	fs := flag.NewFlagSet("tenant-create", flag.ContinueOnError)
	name := fs.String("name", "", "hospital display name")
	dbName := fs.String("db", "", "tenant database name (lowercase identifier)")
	dbUser := fs.String("user", "", "tenant database role")
	dbPassword := fs.String("password", "", "tenant database password")
	timeout := fs.Duration("timeout", defaultMigrationTimeout, "provisioning timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *name == "" || *dbName == "" || *dbUser == "" || *dbPassword == "" {
		return errors.New("-name, -db, -user, and -password are required")
	}

	svc, cleanup, err := newOnboarding(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	runCtx, cancel := context.WithTimeout(ctx.Ctx, *timeout)
	defer cancel()

	tenant, err := svc.CreateTenant(runCtx, service.CreateTenantInput{
		Name:       *name,
		DBName:     *dbName,
		DBUser:     *dbUser,
		DBPassword: *dbPassword,
	})
	if err != nil {
		return err
	}

	ctx.Logger.InfoContext(runCtx, "tenant created",
		"hospital_id", tenant.HospitalID,
		"db_name", tenant.DBName,
		"status", string(tenant.Status))
	return nil
}

func runTenantDecommission(ctx *commandContext, args []string) error {
	fs := flag.NewFlagSet("tenant-decommission", flag.ContinueOnError)
	dbName := fs.String("db", "", "tenant database name")
	yes := fs.Bool("yes", false, "skip confirmation")
	timeout := fs.Duration("timeout", defaultMigrationTimeout, "decommission timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dbName == "" {
		return errors.New("-db is required")
	}
	if !*yes {
		return fmt.Errorf("decommissioning drops database %q permanently; re-run with -yes to confirm", *dbName)
	}

	svc, cleanup, err := newOnboarding(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	runCtx, cancel := context.WithTimeout(ctx.Ctx, *timeout)
	defer cancel()

	if err := svc.DecommissionTenant(runCtx, *dbName); err != nil {
		return err
	}
	ctx.Logger.InfoContext(runCtx, "tenant decommissioned", "db_name", *dbName)
	return nil
}

func runTenantList(ctx *commandContext, args []string) error {
	fs := flag.NewFlagSet("tenant-list", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	svc, cleanup, err := newOnboarding(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	runCtx, cancel := context.WithTimeout(ctx.Ctx, 30*time.Second)
	defer cancel()

	tenants, err := svc.ListTenants(runCtx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	if err := writef(tw, "HOSPITAL_ID\tNAME\tDB_NAME\tSTATUS\tCREATED_AT\n"); err != nil {
		return err
	}
	for _, t := range tenants {
		if err := writef(tw, "%d\t%s\t%s\t%s\t%s\n",
			t.HospitalID, t.Name, t.DBName, t.Status, t.CreatedAt.Format(time.RFC3339)); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func runTenantShow(ctx *commandContext, args []string) error {
	fs := flag.NewFlagSet("tenant-show", flag.ContinueOnError)
	dbName := fs.String("db", "", "tenant database name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dbName == "" {
		return errors.New("-db is required")
	}

	svc, cleanup, err := newOnboarding(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	runCtx, cancel := context.WithTimeout(ctx.Ctx, 30*time.Second)
	defer cancel()

	tenant, err := svc.GetTenant(runCtx, *dbName)
	if err != nil {
		return err
	}

	return writef(os.Stdout, "hospital_id: %d\nname: %s\ndb_name: %s\ndb_user: %s\nstatus: %s\ncreated_at: %s\n",
		tenant.HospitalID, tenant.Name, tenant.DBName, tenant.DBUser, tenant.Status, tenant.CreatedAt.Format(time.RFC3339))
}
