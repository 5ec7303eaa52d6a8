package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lms-identity-api/internal/models"
)

// TenantRepository provides access to the control database's tenant
// directory. Unlike the per-tenant repositories it is bound to a single
// pool: the directory only ever lives in the control database.
type TenantRepository struct {
	db *sqlx.DB
}

// NewTenantRepository creates a new instance of TenantRepository.
func NewTenantRepository(db *sqlx.DB) *TenantRepository {
	return &TenantRepository{db: db}
}

const tenantColumns = `id, name, slug, database_name, status, created_at, updated_at`

// FindByRef returns a tenant matched by id or slug.
func (r *TenantRepository) FindByRef(ctx context.Context, ref string) (*models.Tenant, error) {
	query := fmt.Sprintf(`SELECT %s FROM tenants WHERE id = $1 OR slug = $1 LIMIT 1`, tenantColumns)
	var t models.Tenant
	err := withRetry(ctx, func() error {
		return r.db.GetContext(ctx, &t, query, ref)
	})
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find tenant: %w", err)
	}
	return &t, nil
}

// Create inserts a directory entry. The database_name is fixed for the
// lifetime of the tenant.
func (r *TenantRepository) Create(ctx context.Context, t *models.Tenant) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now

	const query = `INSERT INTO tenants (id, name, slug, database_name, status, created_at, updated_at) VALUES (:id, :name, :slug, :database_name, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, t); err != nil {
		return fmt.Errorf("create tenant: %w", err)
	}
	return nil
}

// UpdateStatus transitions the tenant lifecycle state. database_name is
// deliberately untouchable here.
func (r *TenantRepository) UpdateStatus(ctx context.Context, id string, status models.TenantStatus, updatedAt time.Time) error {
	const query = `UPDATE tenants SET status = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, status, updatedAt)
	if err != nil {
		return fmt.Errorf("update tenant status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// List returns every directory entry.
func (r *TenantRepository) List(ctx context.Context) ([]models.Tenant, error) {
	query := fmt.Sprintf(`SELECT %s FROM tenants ORDER BY slug`, tenantColumns)
	var tenants []models.Tenant
	if err := r.db.SelectContext(ctx, &tenants, query); err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	return tenants, nil
}

// ListActive returns only tenants currently serving traffic, used by the
// background token pruner to walk partitions.
func (r *TenantRepository) ListActive(ctx context.Context) ([]models.Tenant, error) {
	query := fmt.Sprintf(`SELECT %s FROM tenants WHERE status = $1 ORDER BY slug`, tenantColumns)
	var tenants []models.Tenant
	if err := r.db.SelectContext(ctx, &tenants, query, models.TenantActive); err != nil {
		return nil, fmt.Errorf("list active tenants: %w", err)
	}
	return tenants, nil
}
