package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lms-identity-api/internal/models"
	"github.com/noah-isme/lms-identity-api/internal/tenant"
	appErrors "github.com/noah-isme/lms-identity-api/pkg/errors"
	"github.com/noah-isme/lms-identity-api/pkg/response"
)

// HeaderTenant selects the tenant partition for a request.
const HeaderTenant = "X-Tenant-ID"

// Context keys set by the middleware chain.
const (
	ContextTenant   = "tenant"
	ContextTenantDB = "tenant_db"
	ContextClaims   = "auth_claims"
)

// TenantResolver resolves the X-Tenant-ID header into a tenant record and
// its database handle. The directory is consulted on every request, so a
// suspension takes effect immediately.
func TenantResolver(router *tenant.Router) gin.HandlerFunc {
	return func(c *gin.Context) {
		ref := c.GetHeader(HeaderTenant)
		if ref == "" {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "missing "+HeaderTenant+" header"))
			c.Abort()
			return
		}
		// The control ref resolves to the control pool and must never be
		// reachable from a request header.
		if ref == tenant.ControlRef {
			response.Error(c, appErrors.Clone(appErrors.ErrTenantNotFound, ""))
			c.Abort()
			return
		}

		db, tn, err := router.Resolve(c.Request.Context(), ref)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextTenant, tn)
		c.Set(ContextTenantDB, db)
		c.Set("tenant_slug", tn.Slug)
		c.Next()
	}
}

// CurrentTenant returns the tenant resolved for the request, or nil.
func CurrentTenant(c *gin.Context) *models.Tenant {
	if v, ok := c.Get(ContextTenant); ok {
		if tn, ok := v.(*models.Tenant); ok {
			return tn
		}
	}
	return nil
}

// TenantDB returns the database handle resolved for the request, or nil.
func TenantDB(c *gin.Context) *sqlx.DB {
	if v, ok := c.Get(ContextTenantDB); ok {
		if db, ok := v.(*sqlx.DB); ok {
			return db
		}
	}
	return nil
}
