package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// RegisterRequest creates a user within the resolved tenant. Role is
// optional and defaults to STUDENT; privileged roles are rejected.
type RegisterRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	FullName  string `json:"full_name" validate:"required,min=2"`
	Role      Role   `json:"role,omitempty"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// TokenPair is the envelope returned whenever tokens are issued.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int64     `json:"expires_in"`
	IssuedAt     time.Time `json:"issued_at"`
}

// LoginResponse returns the issued tokens and user info.
type LoginResponse struct {
	TokenPair
	User UserInfo `json:"user"`
}

// RefreshTokenRequest exchanges a refresh token for a new access token.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
	IP           string `json:"-"`
	UserAgent    string `json:"-"`
}

// ChangePasswordRequest payload for updating password.
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

// ForgotPasswordRequest initiates the reset flow.
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetPasswordRequest completes the reset flow with a single-use token.
type ResetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

// VerifyEmailRequest consumes an email verification token.
type VerifyEmailRequest struct {
	Token string `json:"token" validate:"required"`
}

// UserInfo describes the authenticated user in responses. The password
// hash never appears here.
type UserInfo struct {
	ID       string   `json:"id"`
	TenantID string   `json:"tenant_id"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	Role     Role     `json:"role"`
	Roles    []Role   `json:"roles"`
	Verified bool     `json:"verified"`
}

// NewUserInfo projects a user row into its response shape.
func NewUserInfo(u *User) UserInfo {
	return UserInfo{
		ID:       u.ID,
		TenantID: u.TenantID,
		Email:    u.Email,
		FullName: u.FullName,
		Role:     u.Role,
		Roles:    u.AllRoles(),
		Verified: u.Verified,
	}
}

// AccessClaims is the fixed JWT payload for access tokens. Tokens that do
// not deserialize into exactly this shape are rejected.
type AccessClaims struct {
	UserID           string `json:"user_id"`
	TenantID         string `json:"tenant_id"`
	Email            string `json:"email"`
	FullName         string `json:"full_name"`
	Role             Role   `json:"role"`
	Roles            []Role `json:"roles"`
	ActiveRole       Role   `json:"active_role"`
	HasMultipleRoles bool   `json:"has_multiple_roles"`
	Verified         bool   `json:"verified"`
	jwt.RegisteredClaims
}
