package tenant

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-identity-api/internal/models"
	appErrors "github.com/noah-isme/lms-identity-api/pkg/errors"
)

// ControlRef is the reserved tenant reference resolving to the control
// database, so directory lookups and tenant-data lookups share one code
// path. No tenant slug may collide with it.
const ControlRef = "__control__"

// Directory looks up tenants in the control store.
type Directory interface {
	FindByRef(ctx context.Context, ref string) (*models.Tenant, error)
}

// Opener establishes a pooled handle to a named tenant database.
type Opener func(ctx context.Context, dbName string) (*sqlx.DB, error)

// Router maps a tenant reference to its dedicated connection pool. Pools
// are created lazily on first use, keyed by database name, and never reused
// across two different database names. The router is an explicit instance
// handed through the middleware chain; there is no package-global state.
type Router struct {
	control   *sqlx.DB
	directory Directory
	open      Opener
	logger    *zap.Logger

	mu    sync.RWMutex
	pools map[string]*sqlx.DB
}

// NewRouter builds a router over an already-open control pool.
func NewRouter(control *sqlx.DB, directory Directory, open Opener, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		control:   control,
		directory: directory,
		open:      open,
		logger:    logger,
		pools:     make(map[string]*sqlx.DB),
	}
}

// Resolve returns the connection handle serving the referenced tenant along
// with the directory row. The tenant row is consulted on every call so a
// suspension takes effect immediately; only the pool itself is cached.
// Every non-active status fails closed.
func (r *Router) Resolve(ctx context.Context, ref string) (*sqlx.DB, *models.Tenant, error) {
	if ref == ControlRef {
		return r.control, nil, nil
	}

	t, err := r.directory.FindByRef(ctx, ref)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrTenantNotFound, "")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, "tenant directory lookup failed")
	}
	if !t.Usable() {
		return nil, nil, appErrors.Clone(appErrors.ErrTenantSuspended, "tenant is "+string(t.Status))
	}

	db, err := r.pool(ctx, t.DatabaseName)
	if err != nil {
		return nil, nil, err
	}
	return db, t, nil
}

// pool returns the cached handle for the database name, constructing it
// under the write lock on first access. Concurrent first requests for the
// same tenant converge on a single pool: the double-checked lookup means
// losers of the lock race observe the winner's entry instead of opening a
// second pool.
func (r *Router) pool(ctx context.Context, dbName string) (*sqlx.DB, error) {
	r.mu.RLock()
	db, ok := r.pools[dbName]
	r.mu.RUnlock()
	if ok {
		return db, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if db, ok := r.pools[dbName]; ok {
		return db, nil
	}

	db, err := r.open(ctx, dbName)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, "tenant database unavailable")
	}
	r.pools[dbName] = db
	r.logger.Info("tenant pool opened", zap.String("database", dbName), zap.Int("open_pools", len(r.pools)))
	return db, nil
}

// PoolCount reports the number of open tenant pools, excluding control.
func (r *Router) PoolCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.pools)
}

// Close drains every tenant pool and finally the control pool.
func (r *Router) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for name, db := range r.pools {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(r.pools, name)
	}
	if r.control != nil {
		if err := r.control.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
