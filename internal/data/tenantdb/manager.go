package tenantdb

// Package tenantdb manages the lifecycle of isolated per-tenant databases:
// provisioning, schema initialization, and decommissioning. These operations
// run from platform/onboarding flows, never general request traffic.

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	// Register the pgx stdlib driver for migration runs.
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/caregrid/caregrid/internal/domain/tenant"
	apperrors "github.com/caregrid/caregrid/internal/errors"
	"github.com/caregrid/caregrid/internal/migrate"
	"github.com/caregrid/caregrid/internal/ports"
)

// AdminConfig carries the superuser connection settings used for DDL.
type AdminConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	SSLMode  string
	// MaintenanceDB is the database DDL connections attach to. Defaults to "postgres".
	MaintenanceDB string
}

// Manager implements ports.TenantProvisioner against a Postgres cluster.
type Manager struct {
	cfg    AdminConfig
	logger *slog.Logger
}

// NewManager constructs a Manager.
func NewManager(cfg AdminConfig, logger *slog.Logger) *Manager {
	if cfg.MaintenanceDB == "" {
		cfg.MaintenanceDB = "postgres"
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = "disable"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{cfg: cfg, logger: logger.With("component", "tenantdb")}
}

var _ ports.TenantProvisioner = (*Manager)(nil)

// Provision creates the tenant database and its credentialed role, scoped to
// only that database. Idempotent: provisioning an already-provisioned tenant
// logs a warning and no-ops rather than erroring.
func (m *Manager) Provision(ctx context.Context, spec ports.ProvisionSpec) error {
	if err := validateSpec(spec); err != nil {
		return err
	}

	conn, err := m.adminConn(ctx, m.cfg.MaintenanceDB)
	if err != nil {
		return apperrors.Provisioning("connect for provisioning", err)
	}
	defer func() {
		if closeErr := conn.Close(ctx); closeErr != nil {
			m.logger.ErrorContext(ctx, "close admin connection failed", "error", closeErr)
		}
	}()

	if err = m.createRole(ctx, conn, spec); err != nil {
		return err
	}
	if err = m.createDatabase(ctx, conn, spec); err != nil {
		return err
	}
	return m.grantPrivileges(ctx, spec)
}

func (m *Manager) createRole(ctx context.Context, conn *pgx.Conn, spec ports.ProvisionSpec) error {
	stmt := fmt.Sprintf("CREATE ROLE %s LOGIN PASSWORD %s",
		pgx.Identifier{spec.DBUser}.Sanitize(),
		quoteLiteral(spec.DBPassword),
	)
	if _, err := conn.Exec(ctx, stmt); err != nil {
		if apperrors.IsDuplicateObject(err) {
			m.logger.WarnContext(ctx, "role already exists, skipping", "role", spec.DBUser)
			return nil
		}
		return apperrors.Provisioning("create tenant role", err)
	}
	m.logger.InfoContext(ctx, "tenant role created", "role", spec.DBUser)
	return nil
}

func (m *Manager) createDatabase(ctx context.Context, conn *pgx.Conn, spec ports.ProvisionSpec) error {
	// CREATE DATABASE cannot run inside a transaction and does not accept
	// bind parameters; identifiers are validated and quoted instead.
	stmt := fmt.Sprintf("CREATE DATABASE %s OWNER %s",
		pgx.Identifier{spec.DBName}.Sanitize(),
		pgx.Identifier{spec.DBUser}.Sanitize(),
	)
	if _, err := conn.Exec(ctx, stmt); err != nil {
		if apperrors.IsDuplicateObject(err) {
			m.logger.WarnContext(ctx, "database already exists, skipping", "database", spec.DBName)
			return nil
		}
		return apperrors.Provisioning("create tenant database", err)
	}
	m.logger.InfoContext(ctx, "tenant database created", "database", spec.DBName)
	return nil
}

func (m *Manager) grantPrivileges(ctx context.Context, spec ports.ProvisionSpec) error {
	// Schema grants must run connected to the tenant database itself.
	conn, err := m.adminConn(ctx, spec.DBName)
	if err != nil {
		return apperrors.Provisioning("connect to tenant database for grants", err)
	}
	defer func() {
		if closeErr := conn.Close(ctx); closeErr != nil {
			m.logger.ErrorContext(ctx, "close grant connection failed", "error", closeErr)
		}
	}()

	dbIdent := pgx.Identifier{spec.DBName}.Sanitize()
	userIdent := pgx.Identifier{spec.DBUser}.Sanitize()
	stmts := []string{
		fmt.Sprintf("REVOKE CONNECT ON DATABASE %s FROM PUBLIC", dbIdent),
		fmt.Sprintf("GRANT CONNECT ON DATABASE %s TO %s", dbIdent, userIdent),
		fmt.Sprintf("GRANT ALL ON SCHEMA public TO %s", userIdent),
	}
	for _, stmt := range stmts {
		if _, execErr := conn.Exec(ctx, stmt); execErr != nil {
			return apperrors.Provisioning("grant tenant privileges", execErr)
		}
	}
	return nil
}

// InitializeSchema applies the ordered tenant migrations to the new database,
// connected as the tenant role. The ledger lives in the tenant database, so
// retried onboarding never re-runs a recorded migration.
func (m *Manager) InitializeSchema(ctx context.Context, spec ports.ProvisionSpec) error {
	if err := validateSpec(spec); err != nil {
		return err
	}

	dsn := m.dsn(spec.DBName, spec.DBUser, spec.DBPassword)
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return apperrors.Provisioning("open tenant database", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			m.logger.ErrorContext(ctx, "close tenant database failed", "error", closeErr)
		}
	}()

	if err = migrate.RunTenant(ctx, db); err != nil {
		return apperrors.Provisioning("migrate tenant schema", err)
	}
	m.logger.InfoContext(ctx, "tenant schema initialized", "database", spec.DBName)
	return nil
}

// Decommission terminates active connections to the tenant database, then
// drops the database and its role. Safe to retry: missing objects are
// treated as already gone.
func (m *Manager) Decommission(ctx context.Context, dbName, dbUser string) error {
	if err := tenant.ValidateIdentifier(dbName); err != nil {
		return apperrors.Validation(err.Error())
	}
	if err := tenant.ValidateIdentifier(dbUser); err != nil {
		return apperrors.Validation(err.Error())
	}

	conn, err := m.adminConn(ctx, m.cfg.MaintenanceDB)
	if err != nil {
		return apperrors.Provisioning("connect for decommissioning", err)
	}
	defer func() {
		if closeErr := conn.Close(ctx); closeErr != nil {
			m.logger.ErrorContext(ctx, "close admin connection failed", "error", closeErr)
		}
	}()

	// Kick active backends off the database so DROP DATABASE can proceed.
	_, err = conn.Exec(ctx,
		`SELECT pg_terminate_backend(pid) FROM pg_stat_activity WHERE datname = $1 AND pid <> pg_backend_pid()`,
		dbName,
	)
	if err != nil {
		return apperrors.Provisioning("terminate tenant connections", err)
	}

	if _, err = conn.Exec(ctx, "DROP DATABASE IF EXISTS "+pgx.Identifier{dbName}.Sanitize()); err != nil {
		return apperrors.Provisioning("drop tenant database", err)
	}
	if _, err = conn.Exec(ctx, "DROP ROLE IF EXISTS "+pgx.Identifier{dbUser}.Sanitize()); err != nil {
		return apperrors.Provisioning("drop tenant role", err)
	}

	m.logger.InfoContext(ctx, "tenant decommissioned", "database", dbName, "role", dbUser)
	return nil
}

func (m *Manager) adminConn(ctx context.Context, dbName string) (*pgx.Conn, error) {
	return pgx.Connect(ctx, m.dsn(dbName, m.cfg.User, m.cfg.Password))
}

// dsn builds a structured connection URL; credentials and names are never
// string-concatenated into the DSN unescaped.
func (m *Manager) dsn(dbName, user, password string) string {
	u := &url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(user, password),
		Host:   net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port)),
		Path:   "/" + dbName,
	}
	q := u.Query()
	q.Set("sslmode", m.cfg.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

func validateSpec(spec ports.ProvisionSpec) error {
	if err := tenant.ValidateIdentifier(spec.DBName); err != nil {
		return apperrors.Validation(err.Error())
	}
	if err := tenant.ValidateIdentifier(spec.DBUser); err != nil {
		return apperrors.Validation(err.Error())
	}
	if spec.DBPassword == "" {
		return apperrors.Validation("tenant database password is required")
	}
	return nil
}

// quoteLiteral quotes a string literal for embedding in DDL that cannot take
// bind parameters. Single quotes are doubled; NUL bytes are rejected upstream
// by config validation.
func quoteLiteral(s string) string {
	if strings.ContainsRune(s, 0) {
		// A NUL can't be represented in a Postgres literal at all.
		s = strings.ReplaceAll(s, "\x00", "")
	}
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// ErrNotProvisioned is returned by pool lookups for tenants that have no
// active database.
var ErrNotProvisioned = errors.New("tenant database not provisioned")
