package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/schoolgate/schoolgate/pkg/errors"
	"github.com/schoolgate/schoolgate/pkg/response"
)

// RequireRole checks that the authenticated principal's role claim is in the
// provided allow-list. Must run after Auth.
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}

	return func(c *gin.Context) {
		role := c.GetString(CtxRoleKey)
		if role == "" {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		if _, ok := allowed[role]; !ok {
			response.Error(c, errors.ErrForbidden)
			c.Abort()
			return
		}

		c.Next()
	}
}
