package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-identity-api/internal/models"
	appErrors "github.com/noah-isme/lms-identity-api/pkg/errors"
	"github.com/noah-isme/lms-identity-api/pkg/response"
)

// TenantService is the use-case surface of the tenant directory.
type TenantService interface {
	List(ctx context.Context) ([]models.Tenant, error)
	Get(ctx context.Context, ref string) (*models.Tenant, error)
	Create(ctx context.Context, req models.CreateTenantRequest) (*models.Tenant, error)
	UpdateStatus(ctx context.Context, ref string, req models.UpdateTenantStatusRequest) (*models.Tenant, error)
}

// TenantHandler exposes the superadmin tenant directory surface. These
// routes run against the control database and require no X-Tenant-ID.
type TenantHandler struct {
	tenants TenantService
	logger  *zap.Logger
}

func NewTenantHandler(tenants TenantService, logger *zap.Logger) *TenantHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TenantHandler{tenants: tenants, logger: logger}
}

// List godoc
// @Summary List all tenants
// @Tags superadmin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope{data=[]models.Tenant}
// @Router /superadmin/tenants [get]
func (h *TenantHandler) List(c *gin.Context) {
	tenants, err := h.tenants.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tenants, nil)
}

// Get godoc
// @Summary Fetch a tenant by ID or slug
// @Tags superadmin
// @Produce json
// @Security BearerAuth
// @Param ref path string true "Tenant ID or slug"
// @Success 200 {object} response.Envelope{data=models.Tenant}
// @Router /superadmin/tenants/{ref} [get]
func (h *TenantHandler) Get(c *gin.Context) {
	tenant, err := h.tenants.Get(c.Request.Context(), c.Param("ref"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tenant, nil)
}

// Create godoc
// @Summary Register a tenant in the directory
// @Tags superadmin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.CreateTenantRequest true "Tenant"
// @Success 201 {object} response.Envelope{data=models.Tenant}
// @Router /superadmin/tenants [post]
func (h *TenantHandler) Create(c *gin.Context) {
	var req models.CreateTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}

	tenant, err := h.tenants.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, tenant)
}

// UpdateStatus godoc
// @Summary Transition a tenant's lifecycle state
// @Tags superadmin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param ref path string true "Tenant ID or slug"
// @Param payload body models.UpdateTenantStatusRequest true "Target status"
// @Success 200 {object} response.Envelope{data=models.Tenant}
// @Router /superadmin/tenants/{ref}/status [patch]
func (h *TenantHandler) UpdateStatus(c *gin.Context) {
	var req models.UpdateTenantStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}

	tenant, err := h.tenants.UpdateStatus(c.Request.Context(), c.Param("ref"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tenant, nil)
}
