package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-identity-api/internal/middleware"
	"github.com/noah-isme/lms-identity-api/internal/models"
	appErrors "github.com/noah-isme/lms-identity-api/pkg/errors"
	"github.com/noah-isme/lms-identity-api/pkg/response"
)

// AuthService is the use-case surface the auth endpoints depend on.
type AuthService interface {
	Login(ctx context.Context, db *sqlx.DB, tenant *models.Tenant, req models.LoginRequest) (*models.LoginResponse, error)
	Register(ctx context.Context, db *sqlx.DB, tenant *models.Tenant, req models.RegisterRequest) (*models.LoginResponse, error)
	Refresh(ctx context.Context, db *sqlx.DB, tenant *models.Tenant, req models.RefreshTokenRequest) (*models.LoginResponse, error)
	Logout(ctx context.Context, db *sqlx.DB, userID, refreshToken string) error
	RevokeSessions(ctx context.Context, db *sqlx.DB, userID string) error
	ChangePassword(ctx context.Context, db *sqlx.DB, userID string, req models.ChangePasswordRequest) error
	ForgotPassword(ctx context.Context, db *sqlx.DB, req models.ForgotPasswordRequest) error
	ResetPassword(ctx context.Context, db *sqlx.DB, req models.ResetPasswordRequest) error
	VerifyEmail(ctx context.Context, db *sqlx.DB, req models.VerifyEmailRequest) error
}

// AuthHandler exposes the authentication endpoints. Every route runs behind
// the tenant resolver, so the handler only reads the resolved handle.
type AuthHandler struct {
	auth   AuthService
	logger *zap.Logger
}

func NewAuthHandler(auth AuthService, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{auth: auth, logger: logger}
}

// Login godoc
// @Summary Authenticate a user
// @Tags auth
// @Accept json
// @Produce json
// @Param X-Tenant-ID header string true "Tenant ID or slug"
// @Param payload body models.LoginRequest true "Credentials"
// @Success 200 {object} response.Envelope{data=models.LoginResponse}
// @Failure 401 {object} response.Envelope
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	req.IP = c.ClientIP()
	req.UserAgent = c.Request.UserAgent()

	resp, err := h.auth.Login(c.Request.Context(), middleware.TenantDB(c), middleware.CurrentTenant(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resp, nil)
}

// Register godoc
// @Summary Register a new user
// @Tags auth
// @Accept json
// @Produce json
// @Param X-Tenant-ID header string true "Tenant ID or slug"
// @Param payload body models.RegisterRequest true "New account"
// @Success 201 {object} response.Envelope{data=models.LoginResponse}
// @Failure 409 {object} response.Envelope
// @Router /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	req.IP = c.ClientIP()
	req.UserAgent = c.Request.UserAgent()

	resp, err := h.auth.Register(c.Request.Context(), middleware.TenantDB(c), middleware.CurrentTenant(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, resp)
}

// Refresh godoc
// @Summary Exchange a refresh token for a new token pair
// @Tags auth
// @Accept json
// @Produce json
// @Param X-Tenant-ID header string true "Tenant ID or slug"
// @Param payload body models.RefreshTokenRequest true "Refresh token"
// @Success 200 {object} response.Envelope{data=models.LoginResponse}
// @Failure 401 {object} response.Envelope
// @Router /auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req models.RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	req.IP = c.ClientIP()
	req.UserAgent = c.Request.UserAgent()

	resp, err := h.auth.Refresh(c.Request.Context(), middleware.TenantDB(c), middleware.CurrentTenant(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resp, nil)
}

// Me godoc
// @Summary Return the identity carried by the access token
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope{data=models.UserInfo}
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	claims := middleware.CurrentClaims(c)
	info := models.UserInfo{
		ID:       claims.UserID,
		TenantID: claims.TenantID,
		Email:    claims.Email,
		FullName: claims.FullName,
		Role:     claims.Role,
		Roles:    claims.Roles,
		Verified: claims.Verified,
	}
	response.JSON(c, http.StatusOK, info, nil)
}

// Logout godoc
// @Summary Revoke the presented refresh token
// @Tags auth
// @Accept json
// @Security BearerAuth
// @Param payload body models.RefreshTokenRequest true "Refresh token"
// @Success 204
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	var req models.RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}

	if err := h.auth.Logout(c.Request.Context(), middleware.TenantDB(c), middleware.CurrentClaims(c).UserID, req.RefreshToken); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// RevokeSessions godoc
// @Summary Revoke every refresh token of the caller
// @Tags auth
// @Security BearerAuth
// @Success 204
// @Router /auth/revoke-sessions [post]
func (h *AuthHandler) RevokeSessions(c *gin.Context) {
	if err := h.auth.RevokeSessions(c.Request.Context(), middleware.TenantDB(c), middleware.CurrentClaims(c).UserID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ChangePassword godoc
// @Summary Change the caller's password and revoke all sessions
// @Tags auth
// @Accept json
// @Security BearerAuth
// @Param payload body models.ChangePasswordRequest true "Passwords"
// @Success 204
// @Router /auth/change-password [post]
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req models.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}

	if err := h.auth.ChangePassword(c.Request.Context(), middleware.TenantDB(c), middleware.CurrentClaims(c).UserID, req); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ForgotPassword godoc
// @Summary Start the password reset flow
// @Tags auth
// @Accept json
// @Param X-Tenant-ID header string true "Tenant ID or slug"
// @Param payload body models.ForgotPasswordRequest true "Account email"
// @Success 202
// @Router /auth/forgot-password [post]
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req models.ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}

	if err := h.auth.ForgotPassword(c.Request.Context(), middleware.TenantDB(c), req); err != nil {
		response.Error(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

// ResetPassword godoc
// @Summary Complete the password reset flow
// @Tags auth
// @Accept json
// @Param X-Tenant-ID header string true "Tenant ID or slug"
// @Param payload body models.ResetPasswordRequest true "Reset token and new password"
// @Success 204
// @Router /auth/reset-password [post]
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req models.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}

	if err := h.auth.ResetPassword(c.Request.Context(), middleware.TenantDB(c), req); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// VerifyEmail godoc
// @Summary Confirm an email address with a verification token
// @Tags auth
// @Accept json
// @Param X-Tenant-ID header string true "Tenant ID or slug"
// @Param payload body models.VerifyEmailRequest true "Verification token"
// @Success 204
// @Router /auth/verify-email [post]
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	var req models.VerifyEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}

	if err := h.auth.VerifyEmail(c.Request.Context(), middleware.TenantDB(c), req); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
