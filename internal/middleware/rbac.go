package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/bienestar-dev/eventos-api/internal/models"
	appErrors "github.com/bienestar-dev/eventos-api/pkg/errors"
	"github.com/bienestar-dev/eventos-api/pkg/response"
)

// RequireRoles blocks callers whose role set holds none of the given roles.
// Participants carry several roles at once, so membership of any one is
// enough.
func RequireRoles(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims := claimsValue.(*models.JWTClaims)

		for _, role := range roles {
			if claims.Roles.Has(role) {
				c.Next()
				return
			}
		}

		response.Error(c, appErrors.ErrForbidden)
		c.Abort()
	}
}

// RequireAdmin is shorthand for administrative or super-admin access.
func RequireAdmin() gin.HandlerFunc {
	return RequireRoles(models.RoleAdministrative, models.RoleSuperAdmin)
}
