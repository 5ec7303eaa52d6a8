package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-identity-api/internal/models"
	appErrors "github.com/noah-isme/lms-identity-api/pkg/errors"
	"github.com/noah-isme/lms-identity-api/pkg/response"
)

// Authorize decides whether a caller may perform an operation requiring
// minRole. The checks run in a fixed order: superadmins bypass everything,
// then the tenant binding is verified, then the role rank. requestTenant
// may be empty for operations outside any tenant scope.
func Authorize(role models.Role, minRole models.Role, requestTenant, tokenTenant string) error {
	if role == models.RoleSuperAdmin {
		return nil
	}
	if requestTenant != "" && tokenTenant != requestTenant {
		return appErrors.Clone(appErrors.ErrTokenTenantMismatch, "")
	}
	if role.Rank() < minRole.Rank() {
		return appErrors.Clone(appErrors.ErrInsufficientRole, "")
	}
	return nil
}

// RequireRole guards a route group with a minimum role. It must run after
// Authenticate.
func RequireRole(minRole models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := CurrentClaims(c)
		if claims == nil {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, ""))
			c.Abort()
			return
		}

		requestTenant := ""
		if tn := CurrentTenant(c); tn != nil {
			requestTenant = tn.ID
		}
		if err := Authorize(claims.Role, minRole, requestTenant, claims.TenantID); err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		c.Next()
	}
}
