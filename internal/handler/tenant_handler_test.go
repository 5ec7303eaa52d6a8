package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-identity-api/internal/models"
	appErrors "github.com/noah-isme/lms-identity-api/pkg/errors"
)

type tenantServiceMock struct {
	tenant     *models.Tenant
	err        error
	lastStatus models.TenantStatus
}

func (m *tenantServiceMock) List(_ context.Context) ([]models.Tenant, error) {
	if m.err != nil {
		return nil, m.err
	}
	return []models.Tenant{*m.tenant}, nil
}

func (m *tenantServiceMock) Get(_ context.Context, _ string) (*models.Tenant, error) {
	return m.tenant, m.err
}

func (m *tenantServiceMock) Create(_ context.Context, _ models.CreateTenantRequest) (*models.Tenant, error) {
	return m.tenant, m.err
}

func (m *tenantServiceMock) UpdateStatus(_ context.Context, _ string, req models.UpdateTenantStatusRequest) (*models.Tenant, error) {
	m.lastStatus = req.Status
	return m.tenant, m.err
}

func TestTenantHandlerCreate(t *testing.T) {
	mockSvc := &tenantServiceMock{tenant: &models.Tenant{ID: "t1", Name: "Acme Academy", Slug: "acme", Status: models.TenantActive}}
	h := NewTenantHandler(mockSvc, nil)

	c, w := testContext(t, http.MethodPost, "/superadmin/tenants", models.CreateTenantRequest{
		Name: "Acme Academy", Slug: "acme", DatabaseName: "lms_acme",
	})
	h.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), "acme")
	assert.NotContains(t, w.Body.String(), "lms_acme", "database name never leaves the control plane")
}

func TestTenantHandlerUpdateStatus(t *testing.T) {
	mockSvc := &tenantServiceMock{tenant: &models.Tenant{ID: "t1", Slug: "acme", Status: models.TenantSuspended}}
	h := NewTenantHandler(mockSvc, nil)

	c, w := testContext(t, http.MethodPut, "/superadmin/tenants/acme/status", models.UpdateTenantStatusRequest{Status: models.TenantSuspended})
	c.Params = []gin.Param{{Key: "ref", Value: "acme"}}
	h.UpdateStatus(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.TenantSuspended, mockSvc.lastStatus)
}

func TestTenantHandlerGetUnknown(t *testing.T) {
	h := NewTenantHandler(&tenantServiceMock{err: appErrors.ErrTenantNotFound}, nil)

	c, w := testContext(t, http.MethodGet, "/superadmin/tenants/ghost", nil)
	c.Params = []gin.Param{{Key: "ref", Value: "ghost"}}
	h.Get(c)

	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "TENANT_NOT_FOUND")
}
