package tenantdb

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/caregrid/caregrid/internal/domain/tenant"
	"github.com/caregrid/caregrid/internal/ports"
)

// Pools is the per-service registry of tenant connection pools, keyed by
// tenant database name. A request may only use the pool matching its bound
// tenant context; there is no way to reach a pool without a binding.
type Pools struct {
	cfg     AdminConfig
	tenants ports.TenantStore
	logger  *slog.Logger

	mu    sync.RWMutex
	pools map[string]*pgxpool.Pool
}

// NewPools constructs a tenant pool registry. Credentials for each tenant
// pool come from the platform tenant store, never from request input.
func NewPools(cfg AdminConfig, tenants ports.TenantStore, logger *slog.Logger) *Pools {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = "disable"
	}
	return &Pools{
		cfg:     cfg,
		tenants: tenants,
		logger:  logger.With("component", "tenant-pools"),
		pools:   make(map[string]*pgxpool.Pool),
	}
}

// ForTenant returns the connection pool for the tenant bound to ctx.
// It fails when no tenant is bound: business code can never silently fall
// through to another tenant's database.
func (p *Pools) ForTenant(ctx context.Context) (*pgxpool.Pool, error) {
	dbName, ok := tenant.FromContext(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant bound to request context")
	}
	return p.get(ctx, dbName)
}

func (p *Pools) get(ctx context.Context, dbName string) (*pgxpool.Pool, error) {
	p.mu.RLock()
	pool, ok := p.pools[dbName]
	p.mu.RUnlock()
	if ok {
		return pool, nil
	}

	rec, err := p.tenants.GetByDBName(ctx, dbName)
	if err != nil {
		return nil, fmt.Errorf("lookup tenant %q: %w", dbName, err)
	}
	if !rec.IsActive() {
		return nil, fmt.Errorf("tenant %q: %w", dbName, ErrNotProvisioned)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	// Another request may have raced us here; reuse its pool.
	if pool, ok = p.pools[dbName]; ok {
		return pool, nil
	}

	pool, err = p.open(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("open pool for tenant %q: %w", dbName, err)
	}
	p.pools[dbName] = pool
	p.logger.InfoContext(ctx, "tenant pool opened", "database", dbName)
	return pool, nil
}

func (p *Pools) open(ctx context.Context, rec tenant.Tenant) (*pgxpool.Pool, error) {
	u := &url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(rec.DBUser, rec.DBPassword),
		Host:   net.JoinHostPort(p.cfg.Host, strconv.Itoa(p.cfg.Port)),
		Path:   "/" + rec.DBName,
	}
	q := u.Query()
	q.Set("sslmode", p.cfg.SSLMode)
	u.RawQuery = q.Encode()

	cfg, err := pgxpool.ParseConfig(u.String())
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 10
	return pgxpool.NewWithConfig(ctx, cfg)
}

// Evict closes and removes the pool for a decommissioned tenant.
func (p *Pools) Evict(dbName string) {
	p.mu.Lock()
	pool, ok := p.pools[dbName]
	delete(p.pools, dbName)
	p.mu.Unlock()
	if ok {
		pool.Close()
	}
}

// Close shuts down all pools.
func (p *Pools) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for name, pool := range p.pools {
		pool.Close()
		delete(p.pools, name)
	}
}
