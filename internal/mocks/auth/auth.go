package auth

// Package auth contains simple hand-written test doubles for the auth,
// admission, and tenant ports. These are lightweight and suitable for unit
// tests without codegen.

import (
	"context"
	"strings"
	"sync"
	"time"

	domainauth "github.com/caregrid/caregrid/internal/domain/auth"
	domaintenant "github.com/caregrid/caregrid/internal/domain/tenant"
	apperrors "github.com/caregrid/caregrid/internal/errors"
	"github.com/caregrid/caregrid/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.UserStore         = (*MemoryUserStore)(nil)
	_ ports.TokenDenylist     = (*MemoryDenylist)(nil)
	_ ports.AdmissionStore    = (*MockAdmissionStore)(nil)
	_ ports.TenantStore       = (*MemoryTenantStore)(nil)
	_ ports.IdentityProvider  = (*MockIdentityProvider)(nil)
	_ ports.ResetNotifier     = (*MockResetNotifier)(nil)
	_ ports.TenantProvisioner = (*MockProvisioner)(nil)
)

// MemoryUserStore is an in-memory user store for unit tests.
type MemoryUserStore struct {
	// Err, when set, is returned by every call.
	Err   error
	users map[string]domainauth.User
}

// NewMemoryUserStore creates a MemoryUserStore seeded with the given users.
func NewMemoryUserStore(users ...domainauth.User) *MemoryUserStore {
	s := &MemoryUserStore{users: make(map[string]domainauth.User)}
	for _, u := range users {
		s.Add(u)
	}
	return s
}

// Add inserts or replaces a user, keyed by ID.
func (s *MemoryUserStore) Add(u domainauth.User) {
	s.users[u.ID] = u
}

func (s *MemoryUserStore) FindByEmail(_ context.Context, email string) (domainauth.User, error) {
	if s.Err != nil {
		return domainauth.User{}, s.Err
	}
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return domainauth.User{}, apperrors.NotFound("user not found")
}

func (s *MemoryUserStore) FindByID(_ context.Context, id string) (domainauth.User, error) {
	if s.Err != nil {
		return domainauth.User{}, s.Err
	}
	u, ok := s.users[id]
	if !ok {
		return domainauth.User{}, apperrors.NotFound("user not found")
	}
	return u, nil
}

// MemoryDenylist is an in-memory token denylist for unit tests.
type MemoryDenylist struct {
	// Err, when set, is returned by every call.
	Err error
	// Now overrides the clock, for expiry tests. Defaults to time.Now.
	Now func() time.Time

	mu      sync.Mutex
	revoked map[string]time.Time
}

// NewMemoryDenylist creates an empty MemoryDenylist.
func NewMemoryDenylist() *MemoryDenylist {
	return &MemoryDenylist{revoked: make(map[string]time.Time)}
}

func (d *MemoryDenylist) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d *MemoryDenylist) Revoke(_ context.Context, fingerprint string, ttl time.Duration) error {
	if d.Err != nil {
		return d.Err
	}
	if ttl <= 0 {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.revoked[fingerprint] = d.now().Add(ttl)
	return nil
}

func (d *MemoryDenylist) IsRevoked(_ context.Context, fingerprint string) (bool, error) {
	if d.Err != nil {
		return false, d.Err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	until, ok := d.revoked[fingerprint]
	if !ok {
		return false, nil
	}
	return d.now().Before(until), nil
}

// MockAdmissionStore records consume attempts and returns a scripted decision.
type MockAdmissionStore struct {
	TryConsumeFunc func(ctx context.Context, key string, policy ports.AdmissionPolicy) (ports.AdmissionDecision, error)

	// Decision and Err are returned when TryConsumeFunc is nil.
	Decision ports.AdmissionDecision
	Err      error

	mu   sync.Mutex
	Keys []string
}

func (s *MockAdmissionStore) TryConsume(ctx context.Context, key string, policy ports.AdmissionPolicy) (ports.AdmissionDecision, error) {
	s.mu.Lock()
	s.Keys = append(s.Keys, key)
	s.mu.Unlock()
	if s.TryConsumeFunc != nil {
		return s.TryConsumeFunc(ctx, key, policy)
	}
	if s.Err != nil {
		return ports.AdmissionDecision{}, s.Err
	}
	return s.Decision, nil
}

// MemoryTenantStore is an in-memory tenant store for unit tests.
type MemoryTenantStore struct {
	// Err, when set, is returned by every call.
	Err error

	mu      sync.Mutex
	nextID  int64
	tenants map[string]domaintenant.Tenant
}

// NewMemoryTenantStore creates a MemoryTenantStore seeded with the given tenants.
func NewMemoryTenantStore(tenants ...domaintenant.Tenant) *MemoryTenantStore {
	s := &MemoryTenantStore{tenants: make(map[string]domaintenant.Tenant)}
	for _, t := range tenants {
		s.nextID++
		if t.HospitalID == 0 {
			t.HospitalID = s.nextID
		}
		s.tenants[t.DBName] = t
	}
	return s
}

func (s *MemoryTenantStore) Create(_ context.Context, t domaintenant.Tenant) (domaintenant.Tenant, error) {
	if s.Err != nil {
		return domaintenant.Tenant{}, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tenants[t.DBName]; exists {
		return domaintenant.Tenant{}, apperrors.Conflict("tenant already exists")
	}
	s.nextID++
	t.HospitalID = s.nextID
	t.CreatedAt = time.Now()
	s.tenants[t.DBName] = t
	return t, nil
}

func (s *MemoryTenantStore) GetByDBName(_ context.Context, dbName string) (domaintenant.Tenant, error) {
	if s.Err != nil {
		return domaintenant.Tenant{}, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tenants[dbName]
	if !ok {
		return domaintenant.Tenant{}, apperrors.NotFound("tenant not found")
	}
	return t, nil
}

func (s *MemoryTenantStore) SetStatus(_ context.Context, dbName string, status domaintenant.Status) error {
	if s.Err != nil {
		return s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tenants[dbName]
	if !ok {
		return apperrors.NotFound("tenant not found")
	}
	t.Status = status
	s.tenants[dbName] = t
	return nil
}

func (s *MemoryTenantStore) List(_ context.Context) ([]domaintenant.Tenant, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domaintenant.Tenant, 0, len(s.tenants))
	for _, t := range s.tenants {
		out = append(out, t)
	}
	return out, nil
}

// MockIdentityProvider simulates an IdP with deterministic state and nonce values.
type MockIdentityProvider struct {
	BeginFunc    func(ctx context.Context, in ports.BeginInput) (authURL, state, nonce string, err error)
	ExchangeFunc func(ctx context.Context, in ports.ExchangeInput) (ports.SSOIdentity, error)

	DefaultIdentity ports.SSOIdentity

	callCount int
}

func (m *MockIdentityProvider) Begin(ctx context.Context, in ports.BeginInput) (string, string, string, error) {
	if m.BeginFunc != nil {
		return m.BeginFunc(ctx, in)
	}
	m.callCount++
	return "https://mock-idp/auth", nonceValue("state", m.callCount), nonceValue("nonce", m.callCount), nil
}

func (m *MockIdentityProvider) Exchange(ctx context.Context, in ports.ExchangeInput) (ports.SSOIdentity, error) {
	if m.ExchangeFunc != nil {
		return m.ExchangeFunc(ctx, in)
	}
	identity := m.DefaultIdentity
	if identity.Email == "" {
		identity = ports.SSOIdentity{
			Subject: "mock-subject",
			Email:   "mock.user@example.com",
		}
	}
	identity.ExpiresAt = time.Now().Add(time.Hour)
	return identity, nil
}

func nonceValue(prefix string, n int) string {
	return prefix + "-" + strings.Repeat("x", n%8+1)
}

// ResetMessage is one captured password-reset delivery.
type ResetMessage struct {
	Email string
	Token string
}

// MockResetNotifier captures reset deliveries.
type MockResetNotifier struct {
	Err error

	mu   sync.Mutex
	Sent []ResetMessage
}

func (m *MockResetNotifier) SendReset(_ context.Context, email, resetToken string) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, ResetMessage{Email: email, Token: resetToken})
	return nil
}

// MockProvisioner records provisioning calls and returns scripted errors.
type MockProvisioner struct {
	ProvisionErr        error
	InitializeSchemaErr error
	DecommissionErr     error

	mu             sync.Mutex
	Provisioned    []ports.ProvisionSpec
	Initialized    []ports.ProvisionSpec
	Decommissioned []string
}

func (m *MockProvisioner) Provision(_ context.Context, spec ports.ProvisionSpec) error {
	if m.ProvisionErr != nil {
		return m.ProvisionErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Provisioned = append(m.Provisioned, spec)
	return nil
}

func (m *MockProvisioner) InitializeSchema(_ context.Context, spec ports.ProvisionSpec) error {
	if m.InitializeSchemaErr != nil {
		return m.InitializeSchemaErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Initialized = append(m.Initialized, spec)
	return nil
}

func (m *MockProvisioner) Decommission(_ context.Context, dbName, _ string) error {
	if m.DecommissionErr != nil {
		return m.DecommissionErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Decommissioned = append(m.Decommissioned, dbName)
	return nil
}

// MockEvictor records pool evictions.
type MockEvictor struct {
	Evicted []string
}

func (m *MockEvictor) Evict(dbName string) {
	m.Evicted = append(m.Evicted, dbName)
}
