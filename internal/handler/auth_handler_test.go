package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-identity-api/internal/middleware"
	"github.com/noah-isme/lms-identity-api/internal/models"
	appErrors "github.com/noah-isme/lms-identity-api/pkg/errors"
)

type authServiceMock struct {
	loginResp    *models.LoginResponse
	loginErr     error
	loginCalled  bool
	lastLogin    models.LoginRequest
	refreshErr   error
	logoutErr    error
	logoutUserID string
}

func (m *authServiceMock) Login(_ context.Context, _ *sqlx.DB, _ *models.Tenant, req models.LoginRequest) (*models.LoginResponse, error) {
	m.loginCalled = true
	m.lastLogin = req
	return m.loginResp, m.loginErr
}

func (m *authServiceMock) Register(_ context.Context, _ *sqlx.DB, _ *models.Tenant, _ models.RegisterRequest) (*models.LoginResponse, error) {
	return m.loginResp, m.loginErr
}

func (m *authServiceMock) Refresh(_ context.Context, _ *sqlx.DB, _ *models.Tenant, _ models.RefreshTokenRequest) (*models.LoginResponse, error) {
	return m.loginResp, m.refreshErr
}

func (m *authServiceMock) Logout(_ context.Context, _ *sqlx.DB, userID, _ string) error {
	m.logoutUserID = userID
	return m.logoutErr
}

func (m *authServiceMock) RevokeSessions(_ context.Context, _ *sqlx.DB, _ string) error { return nil }

func (m *authServiceMock) ChangePassword(_ context.Context, _ *sqlx.DB, _ string, _ models.ChangePasswordRequest) error {
	return nil
}

func (m *authServiceMock) ForgotPassword(_ context.Context, _ *sqlx.DB, _ models.ForgotPasswordRequest) error {
	return nil
}

func (m *authServiceMock) ResetPassword(_ context.Context, _ *sqlx.DB, _ models.ResetPasswordRequest) error {
	return nil
}

func (m *authServiceMock) VerifyEmail(_ context.Context, _ *sqlx.DB, _ models.VerifyEmailRequest) error {
	return nil
}

func testContext(t *testing.T, method, target string, body interface{}) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, target, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	c.Set(middleware.ContextTenant, &models.Tenant{ID: "t1", Slug: "acme", Status: models.TenantActive})
	return c, w
}

func TestAuthHandlerLogin(t *testing.T) {
	mockSvc := &authServiceMock{
		loginResp: &models.LoginResponse{
			TokenPair: models.TokenPair{AccessToken: "jwt", RefreshToken: "opaque", TokenType: "Bearer"},
			User:      models.UserInfo{ID: "u1", TenantID: "t1", Email: "ada@acme.edu"},
		},
	}
	h := NewAuthHandler(mockSvc, nil)

	c, w := testContext(t, http.MethodPost, "/auth/login", models.LoginRequest{Email: "ada@acme.edu", Password: "secret"})
	h.Login(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, mockSvc.loginCalled)
	assert.Equal(t, "ada@acme.edu", mockSvc.lastLogin.Email)
	assert.Contains(t, w.Body.String(), "opaque")
}

func TestAuthHandlerLoginInvalidBody(t *testing.T) {
	h := NewAuthHandler(&authServiceMock{}, nil)

	c, w := testContext(t, http.MethodPost, "/auth/login", nil)
	c.Request.Body = http.NoBody
	h.Login(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "VALIDATION_ERROR")
}

func TestAuthHandlerLoginServiceError(t *testing.T) {
	mockSvc := &authServiceMock{loginErr: appErrors.ErrInvalidCredentials}
	h := NewAuthHandler(mockSvc, nil)

	c, w := testContext(t, http.MethodPost, "/auth/login", models.LoginRequest{Email: "ada@acme.edu", Password: "wrong"})
	h.Login(c)

	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_CREDENTIALS")
}

func TestAuthHandlerRefreshRevoked(t *testing.T) {
	mockSvc := &authServiceMock{refreshErr: appErrors.ErrRefreshTokenRevoked}
	h := NewAuthHandler(mockSvc, nil)

	c, w := testContext(t, http.MethodPost, "/auth/refresh", models.RefreshTokenRequest{RefreshToken: "stale"})
	h.Refresh(c)

	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "REFRESH_TOKEN_REVOKED")
}

func TestAuthHandlerLogoutUsesClaims(t *testing.T) {
	mockSvc := &authServiceMock{}
	h := NewAuthHandler(mockSvc, nil)

	c, w := testContext(t, http.MethodPost, "/auth/logout", models.RefreshTokenRequest{RefreshToken: "opaque"})
	c.Set(middleware.ContextClaims, &models.AccessClaims{UserID: "u7", TenantID: "t1", Role: models.RoleStudent})
	h.Logout(c)
	c.Writer.WriteHeaderNow()

	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "u7", mockSvc.logoutUserID)
}

func TestAuthHandlerMeFromClaims(t *testing.T) {
	h := NewAuthHandler(&authServiceMock{}, nil)

	c, w := testContext(t, http.MethodGet, "/auth/me", nil)
	c.Set(middleware.ContextClaims, &models.AccessClaims{
		UserID: "u1", TenantID: "t1", Email: "ada@acme.edu", Role: models.RoleStudent,
		Roles: []models.Role{models.RoleStudent},
	})
	h.Me(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ada@acme.edu")
	assert.NotContains(t, w.Body.String(), "password")
}
