package middleware

import (
	"net/http"

	"storefront/internal/common"
	"storefront/internal/models"

	"github.com/labstack/echo/v4"
)

// RequireRole admits callers whose token carries one of roles. It must run
// after JWTAuth.
func RequireRole(roles ...models.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			if _, ok := common.GetUserIDFromContext(ctx); !ok {
				return common.SendUnauthorizedError(c, "User not authenticated")
			}
			role, ok := common.GetRoleFromContext(ctx)
			if !ok {
				return c.JSON(http.StatusForbidden, common.CreateErrorResponse("FORBIDDEN", "Insufficient permissions", nil))
			}

			for _, allowed := range roles {
				if role == allowed {
					return next(c)
				}
			}
			return c.JSON(http.StatusForbidden, common.CreateErrorResponse("FORBIDDEN", "Not an Admin", nil))
		}
	}
}
