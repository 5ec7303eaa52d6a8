package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-identity-api/internal/models"
	"github.com/noah-isme/lms-identity-api/internal/security"
	appErrors "github.com/noah-isme/lms-identity-api/pkg/errors"
)

type authUserStore interface {
	FindByEmail(ctx context.Context, db *sqlx.DB, email string) (*models.User, error)
	FindByID(ctx context.Context, db *sqlx.DB, id string) (*models.User, error)
	Create(ctx context.Context, db *sqlx.DB, user *models.User) error
	UpdateLastLogin(ctx context.Context, db *sqlx.DB, id string, ts time.Time) error
	UpdatePassword(ctx context.Context, db *sqlx.DB, id, passwordHash string, updatedAt time.Time) error
	SetVerified(ctx context.Context, db *sqlx.DB, id string, ts time.Time) error
}

type authTokenStore interface {
	CreateRefreshToken(ctx context.Context, db *sqlx.DB, token *models.RefreshToken) error
	FindRefreshToken(ctx context.Context, db *sqlx.DB, token string) (*models.RefreshToken, error)
	ClaimRefreshToken(ctx context.Context, db *sqlx.DB, token string, revokedAt time.Time) (bool, error)
	RevokeUserRefreshTokens(ctx context.Context, db *sqlx.DB, userID string, revokedAt time.Time) error
	CreateVerificationToken(ctx context.Context, db *sqlx.DB, t *models.OneTimeToken) error
	CreatePasswordResetToken(ctx context.Context, db *sqlx.DB, t *models.OneTimeToken) error
	ConsumeVerificationToken(ctx context.Context, db *sqlx.DB, token string, usedAt time.Time) (*models.OneTimeToken, error)
	ConsumePasswordResetToken(ctx context.Context, db *sqlx.DB, token string, usedAt time.Time) (*models.OneTimeToken, error)
}

// Mailer delivers verification and reset tokens. Delivery is an external
// collaborator; LogMailer stands in when none is configured.
type Mailer interface {
	SendVerification(ctx context.Context, email, token string) error
	SendPasswordReset(ctx context.Context, email, token string) error
}

// LogMailer logs instead of sending. Token values are not logged.
type LogMailer struct {
	Logger *zap.Logger
}

func (m *LogMailer) SendVerification(ctx context.Context, email, token string) error {
	m.Logger.Info("verification mail suppressed", zap.String("email", email))
	return nil
}

func (m *LogMailer) SendPasswordReset(ctx context.Context, email, token string) error {
	m.Logger.Info("password reset mail suppressed", zap.String("email", email))
	return nil
}

// AuthServiceConfig defines policy for the authentication flows.
type AuthServiceConfig struct {
	RefreshTokenTTL      time.Duration
	ResetTokenTTL        time.Duration
	VerifyTokenTTL       time.Duration
	AllowUnverifiedLogin bool
}

// AuthService provides the authentication use cases of a tenant. Every
// method receives the connection handle resolved for the request's tenant.
type AuthService struct {
	users     authUserStore
	tokens    authTokenStore
	issuer    *security.TokenIssuer
	hasher    *security.PasswordHasher
	mailer    Mailer
	validator *validator.Validate
	logger    *zap.Logger
	metrics   *MetricsService
	config    AuthServiceConfig
	now       func() time.Time
}

// NewAuthService constructs an AuthService instance. metrics may be nil.
func NewAuthService(users authUserStore, tokens authTokenStore, issuer *security.TokenIssuer, hasher *security.PasswordHasher, mailer Mailer, validate *validator.Validate, logger *zap.Logger, metrics *MetricsService, config AuthServiceConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if mailer == nil {
		mailer = &LogMailer{Logger: logger}
	}
	return &AuthService{
		users:     users,
		tokens:    tokens,
		issuer:    issuer,
		hasher:    hasher,
		mailer:    mailer,
		validator: validate,
		logger:    logger,
		metrics:   metrics,
		config:    config,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Login authenticates a user within the resolved tenant and returns issued
// tokens. Unknown email and wrong password are indistinguishable in both
// response and timing.
func (s *AuthService) Login(ctx context.Context, db *sqlx.DB, tenant *models.Tenant, req models.LoginRequest) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	user, err := s.users.FindByEmail(ctx, db, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.hasher.DummyVerify(req.Password)
			s.metrics.RecordAuthEvent("login_failure")
			return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "")
		}
		return nil, storeFailure(err, "failed to fetch user")
	}
	user.TenantID = tenant.ID

	if !s.hasher.Verify(req.Password, user.PasswordHash) {
		s.metrics.RecordAuthEvent("login_failure")
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "")
	}

	if !user.Active {
		return nil, appErrors.Clone(appErrors.ErrAccountInactive, "")
	}
	if !user.Verified && !s.config.AllowUnverifiedLogin {
		return nil, appErrors.Clone(appErrors.ErrAccountUnverified, "")
	}

	pair, err := s.issueTokens(ctx, db, user, req.IP, req.UserAgent)
	if err != nil {
		return nil, err
	}

	if err := s.users.UpdateLastLogin(ctx, db, user.ID, s.now()); err != nil {
		s.logger.Warn("failed to update last login", zap.Error(err))
	}
	s.metrics.RecordAuthEvent("login_success")

	return &models.LoginResponse{TokenPair: *pair, User: models.NewUserInfo(user)}, nil
}

// Register creates a user in the resolved tenant and logs them in. Role
// defaults to STUDENT; privileged roles cannot be self-assigned.
func (s *AuthService) Register(ctx context.Context, db *sqlx.DB, tenant *models.Tenant, req models.RegisterRequest) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid register payload")
	}

	role := req.Role
	if role == "" {
		role = models.RoleStudent
	}
	if !role.Valid() || !role.SelfAssignable() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "role cannot be chosen at registration")
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		Email:        req.Email,
		PasswordHash: hash,
		FullName:     req.FullName,
		Role:         role,
		Active:       true,
	}
	if err := s.users.Create(ctx, db, user); err != nil {
		if appErrors.Is(err, appErrors.ErrDuplicateEmail) {
			return nil, err
		}
		return nil, storeFailure(err, "failed to create user")
	}
	user.TenantID = tenant.ID

	if token, err := security.NewOpaqueToken(); err == nil {
		vt := &models.OneTimeToken{UserID: user.ID, Token: token, ExpiresAt: s.now().Add(s.config.VerifyTokenTTL)}
		if err := s.tokens.CreateVerificationToken(ctx, db, vt); err != nil {
			s.logger.Warn("failed to persist verification token", zap.Error(err))
		} else if err := s.mailer.SendVerification(ctx, user.Email, token); err != nil {
			s.logger.Warn("failed to send verification mail", zap.Error(err))
		}
	}

	pair, err := s.issueTokens(ctx, db, user, req.IP, req.UserAgent)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordAuthEvent("register")

	return &models.LoginResponse{TokenPair: *pair, User: models.NewUserInfo(user)}, nil
}

// Refresh exchanges a refresh token for a new token pair. The presented
// token is revoked atomically; presenting an already-revoked token is a
// compromise signal that revokes every refresh token of the user.
func (s *AuthService) Refresh(ctx context.Context, db *sqlx.DB, tenant *models.Tenant, req models.RefreshTokenRequest) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid refresh payload")
	}

	stored, err := s.tokens.FindRefreshToken(ctx, db, req.RefreshToken)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrRefreshTokenRevoked, "")
		}
		return nil, storeFailure(err, "failed to fetch refresh token")
	}

	if stored.Revoked {
		return nil, s.handleRefreshReuse(ctx, db, stored.UserID)
	}
	if stored.Expired(s.now()) {
		return nil, appErrors.Clone(appErrors.ErrRefreshTokenRevoked, "")
	}

	claimed, err := s.tokens.ClaimRefreshToken(ctx, db, stored.Token, s.now())
	if err != nil {
		return nil, storeFailure(err, "failed to rotate refresh token")
	}
	if !claimed {
		// Lost the race against a concurrent refresh of the same token.
		return nil, s.handleRefreshReuse(ctx, db, stored.UserID)
	}

	user, err := s.users.FindByID(ctx, db, stored.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrRefreshTokenRevoked, "associated user no longer exists")
		}
		return nil, storeFailure(err, "failed to load user")
	}
	if !user.Active {
		return nil, appErrors.Clone(appErrors.ErrAccountInactive, "")
	}
	user.TenantID = tenant.ID

	pair, err := s.issueTokens(ctx, db, user, req.IP, req.UserAgent)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordAuthEvent("refresh_rotated")

	return &models.LoginResponse{TokenPair: *pair, User: models.NewUserInfo(user)}, nil
}

func (s *AuthService) handleRefreshReuse(ctx context.Context, db *sqlx.DB, userID string) error {
	s.logger.Warn("refresh token reuse detected, revoking all sessions", zap.String("user_id", userID))
	s.metrics.RecordAuthEvent("refresh_reuse")
	if err := s.tokens.RevokeUserRefreshTokens(ctx, db, userID, s.now()); err != nil {
		s.logger.Error("failed to revoke sessions after reuse", zap.Error(err))
	}
	return appErrors.Clone(appErrors.ErrRefreshTokenRevoked, "")
}

// Logout revokes the presented refresh token for the authenticated caller.
func (s *AuthService) Logout(ctx context.Context, db *sqlx.DB, userID, refreshToken string) error {
	stored, err := s.tokens.FindRefreshToken(ctx, db, refreshToken)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrRefreshTokenRevoked, "")
		}
		return storeFailure(err, "failed to load refresh token")
	}
	if stored.UserID != userID {
		return appErrors.Clone(appErrors.ErrForbidden, "token does not belong to user")
	}
	if _, err := s.tokens.ClaimRefreshToken(ctx, db, stored.Token, s.now()); err != nil {
		return storeFailure(err, "failed to revoke refresh token")
	}
	s.metrics.RecordAuthEvent("logout")
	return nil
}

// RevokeSessions revokes every refresh token of the caller.
func (s *AuthService) RevokeSessions(ctx context.Context, db *sqlx.DB, userID string) error {
	if err := s.tokens.RevokeUserRefreshTokens(ctx, db, userID, s.now()); err != nil {
		return storeFailure(err, "failed to revoke sessions")
	}
	s.metrics.RecordAuthEvent("revoke_sessions")
	return nil
}

// ChangePassword changes the password and invalidates all sessions.
func (s *AuthService) ChangePassword(ctx context.Context, db *sqlx.DB, userID string, req models.ChangePasswordRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid change password payload")
	}

	user, err := s.users.FindByID(ctx, db, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return storeFailure(err, "failed to load user")
	}

	if !s.hasher.Verify(req.OldPassword, user.PasswordHash) {
		return appErrors.Clone(appErrors.ErrInvalidCredentials, "old password does not match")
	}

	hash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}
	if err := s.users.UpdatePassword(ctx, db, userID, hash, s.now()); err != nil {
		return storeFailure(err, "failed to update password")
	}

	if err := s.tokens.RevokeUserRefreshTokens(ctx, db, userID, s.now()); err != nil {
		s.logger.Warn("failed to revoke refresh tokens after password change", zap.Error(err))
	}
	return nil
}

// ForgotPassword initiates the reset flow. The response is identical
// whether or not the email exists.
func (s *AuthService) ForgotPassword(ctx context.Context, db *sqlx.DB, req models.ForgotPasswordRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid forgot password payload")
	}

	user, err := s.users.FindByEmail(ctx, db, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return storeFailure(err, "failed to fetch user")
	}

	token, err := security.NewOpaqueToken()
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate reset token")
	}
	rt := &models.OneTimeToken{UserID: user.ID, Token: token, ExpiresAt: s.now().Add(s.config.ResetTokenTTL)}
	if err := s.tokens.CreatePasswordResetToken(ctx, db, rt); err != nil {
		return storeFailure(err, "failed to persist reset token")
	}
	if err := s.mailer.SendPasswordReset(ctx, user.Email, token); err != nil {
		s.logger.Warn("failed to send reset mail", zap.Error(err))
	}
	return nil
}

// ResetPassword completes the reset flow with a single-use token and
// invalidates all sessions.
func (s *AuthService) ResetPassword(ctx context.Context, db *sqlx.DB, req models.ResetPasswordRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reset password payload")
	}

	token, err := s.tokens.ConsumePasswordResetToken(ctx, db, req.Token, s.now())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrValidation, "reset token is invalid or expired")
		}
		return storeFailure(err, "failed to consume reset token")
	}

	hash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}
	if err := s.users.UpdatePassword(ctx, db, token.UserID, hash, s.now()); err != nil {
		return storeFailure(err, "failed to update password")
	}
	if err := s.tokens.RevokeUserRefreshTokens(ctx, db, token.UserID, s.now()); err != nil {
		s.logger.Warn("failed to revoke refresh tokens after reset", zap.Error(err))
	}
	return nil
}

// VerifyEmail consumes a verification token and marks the account verified.
func (s *AuthService) VerifyEmail(ctx context.Context, db *sqlx.DB, req models.VerifyEmailRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid verification payload")
	}

	token, err := s.tokens.ConsumeVerificationToken(ctx, db, req.Token, s.now())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrValidation, "verification token is invalid or expired")
		}
		return storeFailure(err, "failed to consume verification token")
	}
	if err := s.users.SetVerified(ctx, db, token.UserID, s.now()); err != nil {
		return storeFailure(err, "failed to mark user verified")
	}
	return nil
}

func (s *AuthService) issueTokens(ctx context.Context, db *sqlx.DB, user *models.User, ip, userAgent string) (*models.TokenPair, error) {
	access, _, err := s.issuer.Issue(user)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}

	refreshValue, err := security.NewOpaqueToken()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create refresh token")
	}

	refresh := &models.RefreshToken{
		UserID:    user.ID,
		Token:     refreshValue,
		ExpiresAt: s.now().Add(s.config.RefreshTokenTTL),
		CreatedAt: s.now(),
		IPAddress: ip,
		UserAgent: userAgent,
	}
	if err := s.tokens.CreateRefreshToken(ctx, db, refresh); err != nil {
		return nil, storeFailure(err, "failed to persist refresh token")
	}

	return &models.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh.Token,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.issuer.AccessTTL().Seconds()),
		IssuedAt:     s.now(),
	}, nil
}

// storeFailure preserves retryable store errors and wraps everything else
// as internal.
func storeFailure(err error, msg string) error {
	if appErrors.Is(err, appErrors.ErrStoreUnavailable) {
		return err
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, msg)
}
