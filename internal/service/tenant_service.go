package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-identity-api/internal/models"
	appErrors "github.com/noah-isme/lms-identity-api/pkg/errors"
)

type tenantStore interface {
	FindByRef(ctx context.Context, ref string) (*models.Tenant, error)
	Create(ctx context.Context, t *models.Tenant) error
	UpdateStatus(ctx context.Context, id string, status models.TenantStatus, updatedAt time.Time) error
	List(ctx context.Context) ([]models.Tenant, error)
}

// TenantService manages the tenant directory. All operations run against
// the control database and are restricted to superadmins at the gateway.
type TenantService struct {
	tenants   tenantStore
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

func NewTenantService(tenants tenantStore, validate *validator.Validate, logger *zap.Logger) *TenantService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &TenantService{
		tenants:   tenants,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *TenantService) List(ctx context.Context) ([]models.Tenant, error) {
	tenants, err := s.tenants.List(ctx)
	if err != nil {
		return nil, storeFailure(err, "failed to list tenants")
	}
	return tenants, nil
}

func (s *TenantService) Get(ctx context.Context, ref string) (*models.Tenant, error) {
	tenant, err := s.tenants.FindByRef(ctx, ref)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrTenantNotFound, "")
		}
		return nil, storeFailure(err, "failed to load tenant")
	}
	return tenant, nil
}

// Create records a new directory entry. The physical database referenced
// by DatabaseName must already exist.
func (s *TenantService) Create(ctx context.Context, req models.CreateTenantRequest) (*models.Tenant, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid tenant payload")
	}

	tenant := &models.Tenant{
		Name:         req.Name,
		Slug:         req.Slug,
		DatabaseName: req.DatabaseName,
		Status:       models.TenantActive,
	}
	if err := s.tenants.Create(ctx, tenant); err != nil {
		return nil, storeFailure(err, "failed to create tenant")
	}
	s.logger.Info("tenant created", zap.String("slug", tenant.Slug))
	return tenant, nil
}

// UpdateStatus transitions a tenant's lifecycle state. Suspension takes
// effect on the next request since the directory is consulted every time.
func (s *TenantService) UpdateStatus(ctx context.Context, ref string, req models.UpdateTenantStatusRequest) (*models.Tenant, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}
	if !req.Status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown tenant status")
	}

	tenant, err := s.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	if err := s.tenants.UpdateStatus(ctx, tenant.ID, req.Status, s.now()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrTenantNotFound, "")
		}
		return nil, storeFailure(err, "failed to update tenant status")
	}
	s.logger.Info("tenant status changed",
		zap.String("slug", tenant.Slug),
		zap.String("from", string(tenant.Status)),
		zap.String("to", string(req.Status)))
	tenant.Status = req.Status
	return tenant, nil
}
