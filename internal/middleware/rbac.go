package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-billing-api/internal/models"
	appErrors "github.com/noah-isme/sma-billing-api/pkg/errors"
	"github.com/noah-isme/sma-billing-api/pkg/response"
)

// RequireRoles admits only sessions whose role is listed. Admin routes additionally need the
// institution scope carried in the claims.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return func(c *gin.Context) {
		claims, ok := Claims(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		if _, ok := allowed[claims.Role]; !ok {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		if claims.Role == models.RoleAdmin && claims.InstitutionID == "" {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "session has no institution scope"))
			c.Abort()
			return
		}

		c.Next()
	}
}
