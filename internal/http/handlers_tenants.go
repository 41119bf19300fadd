package httpx

import (
	"context"
	"net/http"
	"time"

	domaintenant "github.com/caregrid/caregrid/internal/domain/tenant"
	"github.com/caregrid/caregrid/internal/service"
)

// OnboardingServiceInterface defines the interface for tenant lifecycle operations.
type OnboardingServiceInterface interface {
	CreateTenant(ctx context.Context, in service.CreateTenantInput) (domaintenant.Tenant, error)
	DecommissionTenant(ctx context.Context, dbName string) error
	ListTenants(ctx context.Context) ([]domaintenant.Tenant, error)
	GetTenant(ctx context.Context, dbName string) (domaintenant.Tenant, error)
}

// TenantHandlers provides HTTP handlers for tenant administration. All routes
// are registered behind RequireSuperAdmin.
type TenantHandlers struct {
	Svc OnboardingServiceInterface
}

type createTenantRequest struct {
	Name       string `json:"name"`
	DBName     string `json:"db_name"`
	DBUser     string `json:"db_user"`
	DBPassword string `json:"db_password"`
}

type tenantResponse struct {
	HospitalID int64     `json:"hospital_id"`
	Name       string    `json:"name"`
	DBName     string    `json:"db_name"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

func toTenantResponse(t domaintenant.Tenant) tenantResponse {
	return tenantResponse{
		HospitalID: t.HospitalID,
		Name:       t.Name,
		DBName:     t.DBName,
		Status:     string(t.Status),
		CreatedAt:  t.CreatedAt,
	}
}

// Create handles tenant onboarding.
// POST /admin/tenants.
func (h *TenantHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var req createTenantRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	tenant, err := h.Svc.CreateTenant(r.Context(), service.CreateTenantInput{
		Name:       req.Name,
		DBName:     req.DBName,
		DBUser:     req.DBUser,
		DBPassword: req.DBPassword,
	})
	if err != nil {
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, toTenantResponse(tenant))
}

// List returns all tenant records.
// GET /admin/tenants.
func (h *TenantHandlers) List(w http.ResponseWriter, r *http.Request) {
	tenants, err := h.Svc.ListTenants(r.Context())
	if err != nil {
		WriteAppError(w, err)
		return
	}

	out := make([]tenantResponse, 0, len(tenants))
	for _, t := range tenants {
		out = append(out, toTenantResponse(t))
	}
	WriteJSON(w, http.StatusOK, map[string]any{"tenants": out})
}

// Get returns one tenant record.
// GET /admin/tenants/{db_name}.
func (h *TenantHandlers) Get(w http.ResponseWriter, r *http.Request) {
	tenant, err := h.Svc.GetTenant(r.Context(), r.PathValue("db_name"))
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, toTenantResponse(tenant))
}

// Decommission drops the tenant database and marks the record.
// DELETE /admin/tenants/{db_name}.
func (h *TenantHandlers) Decommission(w http.ResponseWriter, r *http.Request) {
	if err := h.Svc.DecommissionTenant(r.Context(), r.PathValue("db_name")); err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "decommissioned"})
}
