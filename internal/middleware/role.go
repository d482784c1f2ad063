package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/team-task-board/internal/authz"
)

// RequireAdmin rejects requests whose access token does not carry the ADMIN
// global status.  It assumes JWTAuth already ran.  Workspace and project
// roles are resolved per-entity inside the handlers; only the global admin
// override is a blanket middleware concern.
func RequireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !authz.IsAdmin(Status(c)) {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "admin access required"})
			}
			return next(c)
		}
	}
}
