package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-identity-api/internal/middleware"
	"github.com/noah-isme/lms-identity-api/internal/models"
	appErrors "github.com/noah-isme/lms-identity-api/pkg/errors"
	"github.com/noah-isme/lms-identity-api/pkg/response"
)

// UserService is the use-case surface the profile and admin endpoints
// depend on.
type UserService interface {
	GetProfile(ctx context.Context, db *sqlx.DB, tenantID, userID string) (*models.UserInfo, error)
	UpdateProfile(ctx context.Context, db *sqlx.DB, tenantID, userID string, req models.UpdateProfileRequest) (*models.UserInfo, error)
	List(ctx context.Context, db *sqlx.DB, tenantID string, filter models.UserFilter) ([]models.UserInfo, *models.Pagination, error)
	Get(ctx context.Context, db *sqlx.DB, tenantID, userID string) (*models.UserInfo, error)
	ChangeRole(ctx context.Context, db *sqlx.DB, tenantID, userID string, actorRole models.Role, req models.UpdateRoleRequest) (*models.UserInfo, error)
	Deactivate(ctx context.Context, db *sqlx.DB, userID string) error
}

// UserHandler exposes profile endpoints and the admin user management
// surface of a tenant.
type UserHandler struct {
	users  UserService
	logger *zap.Logger
}

func NewUserHandler(users UserService, logger *zap.Logger) *UserHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserHandler{users: users, logger: logger}
}

func tenantID(c *gin.Context) string {
	if tn := middleware.CurrentTenant(c); tn != nil {
		return tn.ID
	}
	return ""
}

// Me godoc
// @Summary Return the caller's stored profile
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope{data=models.UserInfo}
// @Router /users/me [get]
func (h *UserHandler) Me(c *gin.Context) {
	info, err := h.users.GetProfile(c.Request.Context(), middleware.TenantDB(c), tenantID(c), middleware.CurrentClaims(c).UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, info, nil)
}

// UpdateMe godoc
// @Summary Update the caller's profile
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.UpdateProfileRequest true "Profile fields"
// @Success 200 {object} response.Envelope{data=models.UserInfo}
// @Router /users/me [put]
func (h *UserHandler) UpdateMe(c *gin.Context) {
	var req models.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}

	info, err := h.users.UpdateProfile(c.Request.Context(), middleware.TenantDB(c), tenantID(c), middleware.CurrentClaims(c).UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, info, nil)
}

// List godoc
// @Summary List the tenant's users
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param role query string false "Filter by role"
// @Param active query bool false "Filter by active flag"
// @Param search query string false "Match against email and full name"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope{data=[]models.UserInfo}
// @Router /admin/users [get]
func (h *UserHandler) List(c *gin.Context) {
	filter := models.UserFilter{
		Search:    c.Query("search"),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}
	if raw := c.Query("role"); raw != "" {
		role, ok := models.ParseRole(raw)
		if !ok {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unknown role filter"))
			return
		}
		filter.Role = &role
	}
	if raw := c.Query("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "active filter must be a boolean"))
			return
		}
		filter.Active = &active
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))

	users, pagination, err := h.users.List(c.Request.Context(), middleware.TenantDB(c), tenantID(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, users, pagination)
}

// Get godoc
// @Summary Fetch a user of the tenant
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 200 {object} response.Envelope{data=models.UserInfo}
// @Router /admin/users/{id} [get]
func (h *UserHandler) Get(c *gin.Context) {
	info, err := h.users.Get(c.Request.Context(), middleware.TenantDB(c), tenantID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, info, nil)
}

// UpdateRole godoc
// @Summary Change a user's role
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Param payload body models.UpdateRoleRequest true "New role"
// @Success 200 {object} response.Envelope{data=models.UserInfo}
// @Failure 403 {object} response.Envelope
// @Router /admin/users/{id}/role [put]
func (h *UserHandler) UpdateRole(c *gin.Context) {
	var req models.UpdateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}

	info, err := h.users.ChangeRole(c.Request.Context(), middleware.TenantDB(c), tenantID(c), c.Param("id"), middleware.CurrentClaims(c).Role, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, info, nil)
}

// Deactivate godoc
// @Summary Deactivate a user and revoke their sessions
// @Tags admin
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 204
// @Router /admin/users/{id} [delete]
func (h *UserHandler) Deactivate(c *gin.Context) {
	if err := h.users.Deactivate(c.Request.Context(), middleware.TenantDB(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
