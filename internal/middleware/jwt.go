package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/team-task-board/internal/model"
	"github.com/iliyamo/team-task-board/internal/utils"
)

// Context keys set by JWTAuth for downstream handlers.
const (
	CtxUserID = "user_id"
	CtxEmail  = "email"
	CtxStatus = "status"
)

// JWTAuth validates a Bearer access token and injects the authenticated
// identity into the request context.  The status claim is the snapshot
// taken when the token was minted; handlers that need the current status
// re-read the user row.
func JWTAuth(accessSecret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimPrefix(authHeader, "Bearer ")

			claims, ok := utils.VerifyAccessToken(accessSecret, raw)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}

			c.Set(CtxUserID, claims.UserID)
			c.Set(CtxEmail, claims.Email)
			c.Set(CtxStatus, claims.Status)
			return next(c)
		}
	}
}

// UserID returns the authenticated user's id from context, 0 when absent.
func UserID(c echo.Context) uint64 {
	if v, ok := c.Get(CtxUserID).(uint64); ok {
		return v
	}
	return 0
}

// Status returns the status snapshot carried by the access token.
func Status(c echo.Context) model.UserGlobalStatus {
	if v, ok := c.Get(CtxStatus).(model.UserGlobalStatus); ok {
		return v
	}
	return ""
}
