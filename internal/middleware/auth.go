package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-identity-api/internal/models"
	"github.com/noah-isme/lms-identity-api/internal/security"
	appErrors "github.com/noah-isme/lms-identity-api/pkg/errors"
	"github.com/noah-isme/lms-identity-api/pkg/response"
)

// Authenticate validates the bearer token and stores its claims. When a
// tenant was resolved earlier in the chain, a token minted for a different
// tenant is rejected; superadmin tokens cross tenant boundaries.
func Authenticate(issuer *security.TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "missing authorization header"))
			c.Abort()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Error(c, appErrors.Clone(appErrors.ErrTokenMalformed, "authorization header is not a bearer token"))
			c.Abort()
			return
		}

		claims, err := issuer.Validate(parts[1])
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		if tn := CurrentTenant(c); tn != nil && claims.Role != models.RoleSuperAdmin && claims.TenantID != tn.ID {
			response.Error(c, appErrors.Clone(appErrors.ErrTokenTenantMismatch, ""))
			c.Abort()
			return
		}

		c.Set(ContextClaims, claims)
		c.Next()
	}
}

// CurrentClaims returns the validated claims of the request, or nil.
func CurrentClaims(c *gin.Context) *models.AccessClaims {
	if v, ok := c.Get(ContextClaims); ok {
		if claims, ok := v.(*models.AccessClaims); ok {
			return claims
		}
	}
	return nil
}
