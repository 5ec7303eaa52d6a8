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
	appErrors "github.com/noah-isme/lms-identity-api/pkg/errors"
)

type userStore interface {
	FindByID(ctx context.Context, db *sqlx.DB, id string) (*models.User, error)
	UpdateProfile(ctx context.Context, db *sqlx.DB, id, fullName string, updatedAt time.Time) error
	UpdateRole(ctx context.Context, db *sqlx.DB, id string, role models.Role, updatedAt time.Time) error
	Deactivate(ctx context.Context, db *sqlx.DB, id string, ts time.Time) error
	List(ctx context.Context, db *sqlx.DB, filter models.UserFilter) ([]models.User, int, error)
}

type sessionRevoker interface {
	RevokeUserRefreshTokens(ctx context.Context, db *sqlx.DB, userID string, revokedAt time.Time) error
}

// UserService covers profile management and the admin user operations.
type UserService struct {
	users     userStore
	sessions  sessionRevoker
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

func NewUserService(users userStore, sessions sessionRevoker, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &UserService{
		users:     users,
		sessions:  sessions,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// GetProfile returns the caller's profile within their tenant.
func (s *UserService) GetProfile(ctx context.Context, db *sqlx.DB, tenantID, userID string) (*models.UserInfo, error) {
	user, err := s.users.FindByID(ctx, db, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, storeFailure(err, "failed to load user")
	}
	user.TenantID = tenantID
	info := models.NewUserInfo(user)
	return &info, nil
}

// UpdateProfile updates the caller's mutable profile fields.
func (s *UserService) UpdateProfile(ctx context.Context, db *sqlx.DB, tenantID, userID string, req models.UpdateProfileRequest) (*models.UserInfo, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid profile payload")
	}
	if err := s.users.UpdateProfile(ctx, db, userID, req.FullName, s.now()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, storeFailure(err, "failed to update profile")
	}
	return s.GetProfile(ctx, db, tenantID, userID)
}

// List returns a page of the tenant's users for admins.
func (s *UserService) List(ctx context.Context, db *sqlx.DB, tenantID string, filter models.UserFilter) ([]models.UserInfo, *models.Pagination, error) {
	users, total, err := s.users.List(ctx, db, filter)
	if err != nil {
		return nil, nil, storeFailure(err, "failed to list users")
	}

	infos := make([]models.UserInfo, 0, len(users))
	for i := range users {
		users[i].TenantID = tenantID
		infos = append(infos, models.NewUserInfo(&users[i]))
	}
	return infos, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a single user of the tenant for admins.
func (s *UserService) Get(ctx context.Context, db *sqlx.DB, tenantID, userID string) (*models.UserInfo, error) {
	return s.GetProfile(ctx, db, tenantID, userID)
}

// ChangeRole assigns a new primary role. An actor can only grant roles
// strictly below their own rank.
func (s *UserService) ChangeRole(ctx context.Context, db *sqlx.DB, tenantID, userID string, actorRole models.Role, req models.UpdateRoleRequest) (*models.UserInfo, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid role payload")
	}
	if !req.Role.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown role")
	}
	if req.Role.Rank() >= actorRole.Rank() && actorRole != models.RoleSuperAdmin {
		return nil, appErrors.Clone(appErrors.ErrInsufficientRole, "cannot grant a role at or above your own")
	}

	if err := s.users.UpdateRole(ctx, db, userID, req.Role, s.now()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, storeFailure(err, "failed to update role")
	}
	return s.GetProfile(ctx, db, tenantID, userID)
}

// Deactivate disables a user and revokes every session they hold.
func (s *UserService) Deactivate(ctx context.Context, db *sqlx.DB, userID string) error {
	if err := s.users.Deactivate(ctx, db, userID, s.now()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return storeFailure(err, "failed to deactivate user")
	}
	if err := s.sessions.RevokeUserRefreshTokens(ctx, db, userID, s.now()); err != nil {
		s.logger.Warn("failed to revoke sessions for deactivated user",
			zap.String("user_id", userID), zap.Error(err))
	}
	return nil
}
