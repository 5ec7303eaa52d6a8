package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-identity-api/internal/models"
)

func tenantRows(now time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "name", "slug", "database_name", "status", "created_at", "updated_at"}).
		AddRow("t1", "Acme Academy", "acme", "lms_acme", string(models.TenantActive), now, now)
}

func TestTenantFindByRef(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTenantRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, slug, database_name, status, created_at, updated_at FROM tenants WHERE id = $1 OR slug = $1 LIMIT 1")).
		WithArgs("acme").
		WillReturnRows(tenantRows(time.Now()))

	tenant, err := repo.FindByRef(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, "lms_acme", tenant.DatabaseName)
	assert.Equal(t, models.TenantActive, tenant.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTenantFindByRefNotFound(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTenantRepository(db)

	mock.ExpectQuery("SELECT .+ FROM tenants").
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByRef(context.Background(), "ghost")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTenantCreate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTenantRepository(db)

	mock.ExpectExec("INSERT INTO tenants").WillReturnResult(sqlmock.NewResult(1, 1))

	tenant := &models.Tenant{Name: "Acme Academy", Slug: "acme", DatabaseName: "lms_acme", Status: models.TenantActive}
	err := repo.Create(context.Background(), tenant)
	require.NoError(t, err)
	assert.NotEmpty(t, tenant.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTenantUpdateStatusMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTenantRepository(db)

	mock.ExpectExec("UPDATE tenants SET status").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), "ghost", models.TenantSuspended, time.Now())
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
