package service

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-identity-api/internal/models"
	"github.com/noah-isme/lms-identity-api/internal/tenant"
	"github.com/noah-isme/lms-identity-api/pkg/jobs"
)

type pruneTenantDirectory struct {
	tenants []models.Tenant
}

func (d *pruneTenantDirectory) ListActive(context.Context) ([]models.Tenant, error) {
	return d.tenants, nil
}

func (d *pruneTenantDirectory) FindByRef(_ context.Context, ref string) (*models.Tenant, error) {
	for i := range d.tenants {
		if d.tenants[i].Slug == ref {
			return &d.tenants[i], nil
		}
	}
	return nil, assert.AnError
}

type pruneTokenStore struct {
	deleted int64
	calls   int
}

func (s *pruneTokenStore) DeleteExpired(context.Context, *sqlx.DB, time.Time) (int64, error) {
	s.calls++
	return s.deleted, nil
}

func TestPruneTenantDeletesViaResolvedHandle(t *testing.T) {
	mockDB, _, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	dir := &pruneTenantDirectory{tenants: []models.Tenant{
		{ID: "t1", Slug: "acme", DatabaseName: "lms_acme", Status: models.TenantActive},
	}}
	open := func(context.Context, string) (*sqlx.DB, error) {
		return sqlx.NewDb(mockDB, "sqlmock"), nil
	}
	router := tenant.NewRouter(nil, dir, open, nil)

	tokens := &pruneTokenStore{deleted: 4}
	svc := NewPruneService(dir, tokens, router, nil, nil, time.Hour)

	err = svc.pruneTenant(context.Background(), jobs.Job{ID: "j1", Type: "prune", Payload: "acme"})
	require.NoError(t, err)
	assert.Equal(t, 1, tokens.calls)
	assert.Equal(t, 1, router.PoolCount())
}

func TestPruneTenantSkipsSuspended(t *testing.T) {
	dir := &pruneTenantDirectory{tenants: []models.Tenant{
		{ID: "t1", Slug: "acme", DatabaseName: "lms_acme", Status: models.TenantSuspended},
	}}
	open := func(context.Context, string) (*sqlx.DB, error) {
		t.Fatal("no pool may be opened for a suspended tenant")
		return nil, nil
	}
	router := tenant.NewRouter(nil, dir, open, nil)

	tokens := &pruneTokenStore{}
	svc := NewPruneService(dir, tokens, router, nil, nil, time.Hour)

	err := svc.pruneTenant(context.Background(), jobs.Job{ID: "j1", Type: "prune", Payload: "acme"})
	require.Error(t, err)
	assert.Zero(t, tokens.calls)
}
