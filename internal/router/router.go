// Package router wires handlers to URL paths and hangs the middleware
// chain on each route group.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/team-task-board/internal/handler"
	"github.com/iliyamo/team-task-board/internal/middleware"
)

// RegisterRoutes registers routes that require no authentication.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the /v1/auth group.  The whole group sits behind
// the Redis token bucket so credential endpoints cannot be hammered; the
// refresh token itself only ever travels in the HTTP-only cookie these
// handlers set.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, accessSecret string, rateLimit echo.MiddlewareFunc) {
	g := e.Group("/v1/auth")
	if rateLimit != nil {
		g.Use(rateLimit)
	}
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/forgot-password", a.ForgotPassword)
	g.POST("/reset-password", a.ResetPassword)
	// Logout needs the bearer identity to match it against the cookie.
	g.POST("/logout", a.Logout, middleware.JWTAuth(accessSecret))
}

// APIHandlers bundles everything mounted under the protected /v1 group.
type APIHandlers struct {
	Users         *handler.UserHandler
	Workspaces    *handler.WorkspaceHandler
	Projects      *handler.ProjectHandler
	Tasks         *handler.TaskHandler
	Notifications *handler.NotificationHandler
	Admin         *handler.AdminHandler
}

// RegisterAPI registers the protected surface.  Every route runs behind
// the JWT middleware; board list reads additionally go through the Redis
// response cache when one is configured.
func RegisterAPI(e *echo.Echo, h APIHandlers, accessSecret string, cache echo.MiddlewareFunc) {
	v1 := e.Group("/v1")
	v1.Use(middleware.JWTAuth(accessSecret))

	cached := func() []echo.MiddlewareFunc {
		if cache == nil {
			return nil
		}
		return []echo.MiddlewareFunc{cache}
	}()

	v1.GET("/me", h.Users.Me)
	v1.PUT("/me/password", h.Users.UpdatePassword)

	v1.POST("/workspaces", h.Workspaces.Create)
	v1.GET("/workspaces", h.Workspaces.List, cached...)
	v1.GET("/workspaces/:id", h.Workspaces.Get)
	v1.GET("/workspaces/:id/members", h.Workspaces.ListMembers)
	v1.POST("/workspaces/:id/members", h.Workspaces.AddMember)
	v1.PATCH("/workspaces/:id/members/:userId", h.Workspaces.UpdateMemberRole)
	v1.DELETE("/workspaces/:id/members/:userId", h.Workspaces.RemoveMember)
	v1.GET("/workspaces/:id/events", h.Workspaces.Events)

	v1.POST("/workspaces/:id/projects", h.Projects.Create)
	v1.GET("/workspaces/:id/projects", h.Projects.List, cached...)
	v1.GET("/projects/:id", h.Projects.Get)
	v1.PATCH("/projects/:id", h.Projects.Rename)
	v1.DELETE("/projects/:id", h.Projects.Delete)
	v1.GET("/projects/:id/members", h.Projects.ListMembers)
	v1.POST("/projects/:id/members", h.Projects.AddMember)
	v1.PATCH("/projects/:id/members/:userId", h.Projects.UpdateMemberRole)
	v1.DELETE("/projects/:id/members/:userId", h.Projects.RemoveMember)

	v1.POST("/projects/:id/tasks", h.Tasks.Create)
	v1.GET("/projects/:id/tasks", h.Tasks.List, cached...)
	v1.GET("/tasks/:id", h.Tasks.Get)
	v1.PATCH("/tasks/:id", h.Tasks.Update)
	v1.DELETE("/tasks/:id", h.Tasks.Delete)

	v1.GET("/notifications", h.Notifications.List)
	v1.PATCH("/notifications/:id/seen", h.Notifications.MarkSeen)

	admin := v1.Group("/admin")
	admin.Use(middleware.RequireAdmin())
	admin.PATCH("/users/:id/status", h.Admin.UpdateStatus)
	admin.PUT("/users/:id/password", h.Admin.ResetPassword)
}
