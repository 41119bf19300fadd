package tenantdb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	domaintenant "github.com/caregrid/caregrid/internal/domain/tenant"
	apperrors "github.com/caregrid/caregrid/internal/errors"
	"github.com/caregrid/caregrid/internal/ports"
)

func TestProvisionRejectsBadIdentifiers(t *testing.T) {
	m := NewManager(AdminConfig{Host: "localhost", Port: 5432, User: "postgres"}, nil)
	ctx := context.Background()

	cases := []ports.ProvisionSpec{
		{DBName: `tenant";DROP DATABASE platform;--`, DBUser: "t_user", DBPassword: "pw"},
		{DBName: "tenant_ok", DBUser: "t user", DBPassword: "pw"},
		{DBName: "Tenant", DBUser: "t_user", DBPassword: "pw"},
		{DBName: "tenant_ok", DBUser: "t_user", DBPassword: ""},
	}
	for _, spec := range cases {
		err := m.Provision(ctx, spec)
		assert.Error(t, err, "%+v", spec)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidation), "%+v should fail validation, got %v", spec, err)
	}
}

func TestDecommissionRejectsBadIdentifiers(t *testing.T) {
	m := NewManager(AdminConfig{Host: "localhost", Port: 5432, User: "postgres"}, nil)

	err := m.Decommission(context.Background(), "tenant ok", "t_user")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidation))

	err = m.Decommission(context.Background(), "tenant_ok", "t;user")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidation))
}

func TestQuoteLiteral(t *testing.T) {
	assert.Equal(t, "'pw'", quoteLiteral("pw"))
	assert.Equal(t, "'it''s'", quoteLiteral("it's"))
	assert.Equal(t, "''''", quoteLiteral("'"))
	assert.Equal(t, "'ab'", quoteLiteral("a\x00b"))
}

type stubTenantStore struct {
	tenant domaintenant.Tenant
	err    error
}

func (s *stubTenantStore) Create(_ context.Context, t domaintenant.Tenant) (domaintenant.Tenant, error) {
	return t, s.err
}

func (s *stubTenantStore) GetByDBName(context.Context, string) (domaintenant.Tenant, error) {
	return s.tenant, s.err
}

func (s *stubTenantStore) SetStatus(context.Context, string, domaintenant.Status) error {
	return s.err
}

func (s *stubTenantStore) List(context.Context) ([]domaintenant.Tenant, error) {
	return nil, s.err
}

func TestForTenantRequiresBinding(t *testing.T) {
	pools := NewPools(AdminConfig{Host: "localhost", Port: 5432}, &stubTenantStore{}, nil)
	t.Cleanup(pools.Close)

	_, err := pools.ForTenant(context.Background())
	assert.Error(t, err, "an unbound request must never reach a tenant pool")
}

func TestForTenantRejectsInactiveTenant(t *testing.T) {
	store := &stubTenantStore{tenant: domaintenant.Tenant{
		DBName: "tenant_pending",
		Status: domaintenant.StatusPending,
	}}
	pools := NewPools(AdminConfig{Host: "localhost", Port: 5432}, store, nil)
	t.Cleanup(pools.Close)

	ctx := domaintenant.NewContext(context.Background(), "tenant_pending")
	_, err := pools.ForTenant(ctx)
	assert.ErrorIs(t, err, ErrNotProvisioned)
}
